package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/bl-concierge/internal/llm"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const (
	// ApologyAnswer is returned whenever the model cannot be reached.
	ApologyAnswer = "Sorry, an unexpected error occurred."
	// DefaultAnswer is the reply for general enquiries with nothing better to say.
	DefaultAnswer = "For general enquiries, please provide your BL number or contact support for assistance."

	maxClassifyTokens = 300
)

// Source records how a Result was produced.
type Source int

const (
	// SourceModel is a well-formed model answer.
	SourceModel Source = iota
	// SourceUnparsed means the model answered but not in the expected schema;
	// the raw text is used as the answer.
	SourceUnparsed
	// SourceUnavailable means the model call failed.
	SourceUnavailable
)

func (s Source) String() string {
	switch s {
	case SourceModel:
		return "model"
	case SourceUnparsed:
		return "unparsed"
	case SourceUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is a normalized classification.
type Result struct {
	Intent      Intent
	Identifiers []string
	Answer      string
	Source      Source
}

// Classifier asks a language model for the intent of the latest turn.
type Classifier struct {
	client  llm.Client
	phrases []string
	logger  *logging.Logger
}

// New returns a Classifier. phrases are the canned FAQ phrases listed in the
// system prompt so the model can answer general questions from them.
func New(client llm.Client, phrases []string, logger *logging.Logger) *Classifier {
	if client == nil {
		panic("classify: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{client: client, phrases: phrases, logger: logger}
}

// Classify never fails: a model error or malformed answer yields a
// general_question fallback.
func (c *Classifier) Classify(ctx context.Context, history []llm.ChatMessage, valid, invalid []string) Result {
	resp, err := c.client.Complete(ctx, llm.Request{
		System:    []string{SystemPrompt(valid, invalid, c.phrases)},
		Messages:  history,
		MaxTokens: maxClassifyTokens,
	})
	if err != nil {
		c.logger.Error("intent classification failed", "error", err)
		return Result{Intent: IntentGeneralQuestion, Answer: ApologyAnswer, Source: SourceUnavailable}
	}

	result, err := Decode(resp.Text)
	if err != nil {
		c.logger.Warn("classifier answer did not match schema", "error", err)
		return Result{Intent: IntentGeneralQuestion, Answer: resp.Text, Source: SourceUnparsed}
	}
	if strings.TrimSpace(result.Answer) == "" {
		result.Answer = ApologyAnswer
	}
	return result
}

// payload mirrors the JSON object the model is instructed to return.
type payload struct {
	Intent     *string     `json:"intent"`
	Identifier identifiers `json:"bl_number"`
	Answer     string      `json:"answer"`
}

// identifiers accepts a string, a list of strings or null.
type identifiers []string

func (ids *identifiers) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*ids = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("bl_number list: %w", err)
		}
		*ids = cleanIdentifiers(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("bl_number: %w", err)
	}
	*ids = cleanIdentifiers([]string{single})
	return nil
}

func cleanIdentifiers(in []string) []string {
	var out []string
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" || strings.EqualFold(id, "null") {
			continue
		}
		out = append(out, id)
	}
	return out
}

var errMissingIntent = errors.New("classify: intent missing")

// Decode parses a model answer into a Result. The text may be wrapped in a
// markdown code fence.
func Decode(text string) (Result, error) {
	body := stripFence(text)
	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Result{}, fmt.Errorf("classify: decode answer: %w", err)
	}
	if p.Intent == nil {
		return Result{}, errMissingIntent
	}
	intent := Intent(strings.TrimSpace(*p.Intent))
	if !intent.Valid() {
		return Result{}, fmt.Errorf("classify: unknown intent %q", intent)
	}
	return Result{
		Intent:      intent,
		Identifiers: []string(p.Identifier),
		Answer:      p.Answer,
		Source:      SourceModel,
	}, nil
}

func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}
