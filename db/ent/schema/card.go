package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// Card is one scanned business card. Missing contact fields are stored as "".
type Card struct {
	ent.Schema
}

func (Card) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "cards"},
	}
}

func (Card) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		field.UUID("user_id", uuid.UUID{}),
		field.String("name").Default(""),
		field.String("company").Default(""),
		field.String("email").Default(""),
		field.String("phone").Default(""),
		field.Text("raw_text").Default(""),
		field.String("image_path").NotEmpty(),
		field.Time("uploaded_at").Default(time.Now).Immutable(),
	}
}

func (Card) Edges() []ent.Edge {
	return []ent.Edge{
		// MANY cards -> ONE user
		edge.From("owner", User.Type).
			Ref("cards").
			Field("user_id").
			Required().
			Unique(),
	}
}

func (Card) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "uploaded_at"),
	}
}
