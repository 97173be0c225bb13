package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/card-scanner/internal/common"
)

// UploadedOnLayout is how upload timestamps are shown and exported.
const UploadedOnLayout = "2006-01-02 15:04:05"

func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	// strip time to midnight UTC to match DATE semantics
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseDateRange parses optional YYYY-MM-DD bounds. Blank values yield nil.
func ParseDateRange(from, to string) (*time.Time, *time.Time, error) {
	var f, t *time.Time
	if s := strings.TrimSpace(from); s != "" {
		v, err := ParseYMD(s)
		if err != nil {
			return nil, nil, fmt.Errorf("from %q: %w", s, common.ErrInvalidInput)
		}
		f = &v
	}
	if s := strings.TrimSpace(to); s != "" {
		v, err := ParseYMD(s)
		if err != nil {
			return nil, nil, fmt.Errorf("to %q: %w", s, common.ErrInvalidInput)
		}
		t = &v
	}
	if f != nil && t != nil && t.Before(*f) {
		return nil, nil, fmt.Errorf("to is before from: %w", common.ErrInvalidInput)
	}
	return f, t, nil
}

// FormatUploadedOn renders t in UTC with UploadedOnLayout.
func FormatUploadedOn(t time.Time) string {
	return t.UTC().Format(UploadedOnLayout)
}
