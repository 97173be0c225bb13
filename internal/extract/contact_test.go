package extract

import (
	"sync"
	"testing"
)

func TestContact(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ContactRecord
	}{
		{
			name: "empty input yields empty record",
			raw:  "",
			want: ContactRecord{},
		},
		{
			name: "full card",
			raw:  "John Doe\nAcme Corp\nContact: john@acme.com\nTel: +1 555-123-4567",
			want: ContactRecord{
				Name:    "John Doe",
				Company: "Acme Corp",
				Email:   "john@acme.com",
				Phone:   "+1 555-123-4567",
			},
		},
		{
			name: "single line has no company",
			raw:  "Solo Name",
			want: ContactRecord{Name: "Solo Name"},
		},
		{
			name: "first email wins",
			raw:  "a@x.com b@y.com",
			want: ContactRecord{Name: "a@x.com b@y.com", Email: "a@x.com"},
		},
		{
			name: "blank and whitespace lines are skipped",
			raw:  "\n\nJohn\n   \t\nAcme\n",
			want: ContactRecord{Name: "John", Company: "Acme"},
		},
		{
			name: "lines are trimmed",
			raw:  "   Jane Roe  \r\n\tGlobex Inc\t\n",
			want: ContactRecord{Name: "Jane Roe", Company: "Globex Inc"},
		},
		{
			name: "logo line is taken as the name",
			raw:  "ACME\nJohn Doe\nSales",
			want: ContactRecord{Name: "ACME", Company: "John Doe"},
		},
		{
			name: "dotted and dashed email parts",
			raw:  "x\ny\nmail: first.last-name@mail.example-corp.co.uk.",
			want: ContactRecord{Name: "x", Company: "y", Email: "first.last-name@mail.example-corp.co.uk"},
		},
		{
			name: "email without tld does not match",
			raw:  "user@localhost",
			want: ContactRecord{Name: "user@localhost"},
		},
		{
			name: "short digit runs are not phones",
			raw:  "Room 12345678",
			want: ContactRecord{Name: "Room 12345678"},
		},
		{
			name: "nine digits is the shortest phone",
			raw:  "Call 123456789 now",
			want: ContactRecord{Name: "Call 123456789 now", Phone: "123456789"},
		},
		{
			name: "first phone wins",
			raw:  "A\nB\n555 123 4567\n+44 20 7946 0958",
			want: ContactRecord{Name: "A", Company: "B", Phone: "555 123 4567"},
		},
		{
			name: "phone may span a line break",
			raw:  "Tel\n12345\n6789",
			want: ContactRecord{Name: "Tel", Company: "12345", Phone: "12345\n6789"},
		},
		{
			name: "phone does not end on a separator",
			raw:  "Tel 555-123-4567- ext",
			want: ContactRecord{Name: "Tel 555-123-4567- ext", Phone: "555-123-4567"},
		},
		{
			name: "unicode word characters in email",
			raw:  "José\nCafé\njosé@café.com",
			want: ContactRecord{Name: "José", Company: "Café", Email: "josé@café.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want.RawText = tt.raw
			got := Contact(tt.raw)
			if got != tt.want {
				t.Errorf("Contact(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestContact_Deterministic(t *testing.T) {
	raw := "John Doe\nAcme Corp\njohn@acme.com\n+1 555-123-4567"
	first := Contact(raw)
	for i := 0; i < 10; i++ {
		if got := Contact(raw); got != first {
			t.Fatalf("run %d: Contact() = %+v, want %+v", i, got, first)
		}
	}
}

func TestContact_RawTextPassThrough(t *testing.T) {
	raw := "  \n John \n\n"
	if got := Contact(raw).RawText; got != raw {
		t.Errorf("RawText = %q, want %q", got, raw)
	}
}

func TestContactExtractor_ConcurrentUse(t *testing.T) {
	var fe FieldExtractor = NewContactExtractor()
	raw := "John Doe\nAcme Corp\njohn@acme.com\nTel: +1 555-123-4567"
	want := Contact(raw)

	var wg sync.WaitGroup
	errs := make(chan ContactRecord, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := fe.ExtractFields(raw); got != want {
				errs <- got
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("ExtractFields() = %+v, want %+v", got, want)
	}
}
