package extract

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// regexp2 keeps \w, \d, \s and \b Unicode-aware; RE2 would narrow them to ASCII.
var (
	reEmail = regexp2.MustCompile(`\b[\w\.-]+@[\w\.-]+\.\w+\b`, regexp2.None)
	rePhone = regexp2.MustCompile(`\+?\d[\d\s\-]{7,}\d`, regexp2.None)
)

// ContactExtractor is the FieldExtractor for business cards. It has no state.
type ContactExtractor struct{}

func NewContactExtractor() ContactExtractor { return ContactExtractor{} }

func (ContactExtractor) ExtractFields(rawText string) ContactRecord {
	return Contact(rawText)
}

// Contact reads name, company, email and phone out of raw OCR text.
//
// Name and company are positional: the first and second non-blank lines.
// Email and phone are the first pattern matches anywhere in the untrimmed text.
func Contact(rawText string) ContactRecord {
	lines := nonBlankLines(rawText)

	rec := ContactRecord{RawText: rawText}
	if len(lines) > 0 {
		rec.Name = lines[0]
	}
	if len(lines) > 1 {
		rec.Company = lines[1]
	}
	rec.Email = firstMatch(reEmail, rawText)
	rec.Phone = firstMatch(rePhone, rawText)
	return rec
}

func nonBlankLines(s string) []string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// firstMatch returns "" on no match. regexp2 only errors on a match timeout,
// which is unset here, so an error is treated the same way.
func firstMatch(re *regexp2.Regexp, s string) string {
	m, err := re.FindStringMatch(s)
	if err != nil || m == nil {
		return ""
	}
	return m.String()
}
