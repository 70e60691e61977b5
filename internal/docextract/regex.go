package docextract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	identifierPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[A-Z]{3}\d{6,}\b`),
		regexp.MustCompile(`(?i)\bBL[ -]?\d{4,}\b`),
		regexp.MustCompile(`\b\d{3}-\d{3,}\b`),
		regexp.MustCompile(`\b[A-Z]{3,}\d*\b`),
	}
	amountPattern = regexp.MustCompile(`(?i)\$\s?(\d+[.,]?\d*)|USD\s?(\d+[.,]?\d*)`)
)

// Regex extracts fields with fixed patterns. It is the fallback when the
// model cannot be used.
func Regex(text string) Fields {
	fields := Fields{RawText: text}
	seen := make(map[string]struct{})
	for _, re := range identifierPatterns {
		for _, m := range re.FindAllString(text, -1) {
			id := strings.ToUpper(m)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			fields.Identifiers = append(fields.Identifiers, id)
		}
	}

	if m := amountPattern.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		// A comma ends the number, so "1,200" reads as 1.
		if i := strings.IndexByte(raw, ','); i >= 0 {
			raw = raw[:i]
		}
		if v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "."), 64); err == nil {
			fields.PaidAmount = &v
		}
	}
	return fields
}
