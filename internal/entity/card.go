package entity

import (
	"time"

	"github.com/google/uuid"
)

// Card represents one scanned business card for data transfer between layers.
type Card struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	Company    string    `json:"company"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	RawText    string    `json:"raw_text"`
	ImagePath  string    `json:"image_path"`
	UploadedAt time.Time `json:"uploaded_at"`
}
