package docextract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfman30/bl-concierge/internal/llm"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const (
	extractionSystemPrompt = "You are a document parser for logistics and shipping receipts."
	extractionPrompt       = "Extract all Bill of Lading numbers (BL numbers, e.g. NYC22062889, BL12345, NYC220, or similar) and the payment amount (in USD or other currencies) from the following receipt text.\n\nText:\n\"\"\"%s\n\"\"\"\n\nReturn a JSON object with keys: bl_numbers (array of strings), paid_amount (number or null). If nothing is found, return empty array and null. Only return the JSON."

	maxExtractionTokens = 300
)

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// LLMExtractor asks a language model for the fields and falls back to Regex
// when the answer is missing either key or is not JSON.
type LLMExtractor struct {
	client llm.Client
	logger *logging.Logger
}

func NewLLMExtractor(client llm.Client, logger *logging.Logger) *LLMExtractor {
	if client == nil {
		panic("docextract: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMExtractor{client: client, logger: logger}
}

func (e *LLMExtractor) Extract(ctx context.Context, doc Document) Fields {
	text := Text(doc)
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("document has no readable text", "filename", doc.Filename, "content_type", doc.ContentType)
		return Fields{}
	}

	resp, err := e.client.Complete(ctx, llm.Request{
		System:      []string{extractionSystemPrompt},
		Messages:    []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: fmt.Sprintf(extractionPrompt, text)}},
		MaxTokens:   maxExtractionTokens,
		Temperature: 0,
	})
	if err != nil {
		e.logger.Error("document extraction call failed", "filename", doc.Filename, "error", err)
		return Regex(text)
	}

	fields, err := decodeFields(resp.Text)
	if err != nil {
		e.logger.Warn("document extraction answer unusable; using patterns", "filename", doc.Filename, "error", err)
		return Regex(text)
	}
	fields.RawText = text
	return fields
}

func decodeFields(answer string) (Fields, error) {
	raw := jsonObject.FindString(answer)
	if raw == "" {
		return Fields{}, fmt.Errorf("docextract: no json object in answer")
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return Fields{}, fmt.Errorf("docextract: decode answer: %w", err)
	}
	if _, ok := keys["bl_numbers"]; !ok {
		return Fields{}, fmt.Errorf("docextract: answer lacks bl_numbers")
	}
	if _, ok := keys["paid_amount"]; !ok {
		return Fields{}, fmt.Errorf("docextract: answer lacks paid_amount")
	}

	var fields Fields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Fields{}, fmt.Errorf("docextract: decode fields: %w", err)
	}
	if fields.PaidAmount != nil && *fields.PaidAmount == 0 {
		fields.PaidAmount = nil
	}
	if fields.Identifiers == nil {
		fields.Identifiers = []string{}
	}
	return fields, nil
}
