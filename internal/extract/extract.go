// Package extract pulls candidate BL identifiers, payment amounts and email
// addresses out of free-form customer text.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	identifierPattern = regexp.MustCompile(`(?i)(?:提单号[:：]?\s*)?([A-Z]{2,4}\d{2,}|BL-\d{4,}|\d{3,}-\d{3,}|\d{6,}|\d{4,})`)
	tokenSplit        = regexp.MustCompile(`[,\s]+`)
	tokenPattern      = regexp.MustCompile(`^[A-Z]{2,4}\d{2,}$|^\d{4,}$|^\d{3}-\d{3}$`)
	whitespaceToken   = regexp.MustCompile(`\S+`)
	emailPattern      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\$\s?([0-9]+(?:\.[0-9]{1,2})?)`),
		regexp.MustCompile(`(?i)USD\s*([0-9]+(?:\.[0-9]{1,2})?)`),
		regexp.MustCompile(`(?i)Amount[:：]?\s*\$?([0-9]+(?:\.[0-9]{1,2})?)`),
		regexp.MustCompile(`(?i)Paid[:：]?\s*\$?([0-9]+(?:\.[0-9]{1,2})?)`),
	}
)

// Identifiers returns every candidate identifier found in text, pattern-scan
// hits first, then whole-token hits, deduplicated case-insensitively.
func Identifiers(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return Dedupe(scanPattern(text), scanTokens(text))
}

func scanPattern(text string) []string {
	emails := emailSpans(text)
	var out []string
	for _, m := range identifierPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		if start < 0 || insideAny(start, end, emails) {
			continue
		}
		out = append(out, text[start:end])
	}
	return out
}

func scanTokens(text string) []string {
	var out []string
	for _, tok := range tokenSplit.Split(text, -1) {
		if tok == "" || strings.Contains(tok, "@") {
			continue
		}
		if tokenPattern.MatchString(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// emailSpans returns byte ranges of whitespace-delimited tokens that carry an '@'.
func emailSpans(text string) [][2]int {
	var spans [][2]int
	for _, loc := range whitespaceToken.FindAllStringIndex(text, -1) {
		if strings.Contains(text[loc[0]:loc[1]], "@") {
			spans = append(spans, [2]int{loc[0], loc[1]})
		}
	}
	return spans
}

func insideAny(start, end int, spans [][2]int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

// Dedupe merges the given lists in order, trimming entries and keeping the
// first spelling of each case-insensitive duplicate.
func Dedupe(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, id := range list {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			key := strings.ToUpper(id)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Subtract returns the entries of all that are not in remove (case-insensitive).
func Subtract(all, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		drop[strings.ToUpper(strings.TrimSpace(id))] = struct{}{}
	}
	var out []string
	for _, id := range all {
		if _, ok := drop[strings.ToUpper(strings.TrimSpace(id))]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Amount returns the first payment amount mentioned in text. The patterns are
// tried in a fixed order and the first one that matches wins.
func Amount(text string) (float64, bool) {
	for _, re := range amountPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

// IsEmail reports whether the whole trimmed message is a single email address.
func IsEmail(text string) bool {
	return emailPattern.MatchString(strings.TrimSpace(text))
}
