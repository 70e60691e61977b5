// Package canned answers frequently asked questions from a fixed phrase table
// without calling the language model.
package canned

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// PaymentStatusPhrase is answered with a per-identifier status report when the
// session knows which shipments the customer means.
const PaymentStatusPhrase = "how do i check my payment status"

// Threshold is the minimum similarity a candidate phrase must exceed.
const Threshold = 0.6

//go:embed phrases.yaml
var defaultTable []byte

var stripPattern = regexp.MustCompile(`[^-\w\s]`)

// Entry is one FAQ phrase and its fixed answer.
type Entry struct {
	Phrase string `yaml:"phrase"`
	Answer string `yaml:"answer"`
}

// Match is the accepted phrase for an input.
type Match struct {
	Phrase     string
	Answer     string
	Similarity float64
}

// IsPaymentStatus reports whether the match is the payment-status FAQ.
func (m Match) IsPaymentStatus() bool {
	return m.Phrase == PaymentStatusPhrase
}

// Matcher scores input text against an ordered phrase table.
type Matcher struct {
	entries    []Entry
	normalized []string
}

// NewMatcher builds a matcher over the given ordered entries.
func NewMatcher(entries []Entry) *Matcher {
	m := &Matcher{entries: entries, normalized: make([]string, len(entries))}
	for i, e := range entries {
		m.normalized[i] = Normalize(e.Phrase)
	}
	return m
}

// Default returns a matcher over the embedded phrase table.
func Default() *Matcher {
	entries, err := ParseTable(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("canned: embedded phrase table: %v", err))
	}
	return NewMatcher(entries)
}

// ParseTable decodes a YAML list of phrase/answer pairs, keeping order.
func ParseTable(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("canned: decode table: %w", err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Phrase) == "" || strings.TrimSpace(e.Answer) == "" {
			return nil, fmt.Errorf("canned: entry %d is missing a phrase or answer", i)
		}
	}
	return entries, nil
}

// Phrases lists the table phrases in order.
func (m *Matcher) Phrases() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Phrase
	}
	return out
}

// Match returns the best candidate phrase contained in text, if its similarity
// exceeds Threshold.
func (m *Matcher) Match(text string) (Match, bool) {
	input := Normalize(text)
	if input == "" {
		return Match{}, false
	}
	best := -1
	bestScore := 0.0
	for i, phrase := range m.normalized {
		if phrase == "" || !strings.Contains(input, phrase) {
			continue
		}
		if score := Similarity(input, phrase); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore <= Threshold {
		return Match{}, false
	}
	return Match{
		Phrase:     m.entries[best].Phrase,
		Answer:     m.entries[best].Answer,
		Similarity: bestScore,
	}, true
}

// Normalize lower-cases s and drops everything except word characters,
// hyphens and whitespace.
func Normalize(s string) string {
	return stripPattern.ReplaceAllString(strings.ToLower(s), "")
}

// Similarity slides the shorter string across the longer one and returns the
// best fraction of positions with identical characters.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longer, shorter := rb, ra
	if len(ra) > len(rb) {
		longer, shorter = ra, rb
	}
	if len(shorter) == 0 {
		if len(longer) == 0 {
			return 1
		}
		return 0
	}
	best := 0
	for i := 0; i <= len(longer)-len(shorter); i++ {
		matches := 0
		for j := range shorter {
			if longer[i+j] == shorter[j] {
				matches++
			}
		}
		if matches > best {
			best = matches
		}
	}
	return float64(best) / float64(len(shorter))
}
