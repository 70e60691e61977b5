// Package localize translates replies for customers writing in Chinese.
package localize

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/bl-concierge/internal/llm"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// Signature is appended to translated replies that lack a closing.
const Signature = "\n\n祝商祺！\nIQSTrade客服团队"

const chineseRatio = 0.2

var closingIdiom = regexp.MustCompile(`祝商祺|此致敬礼|顺祝商祺|敬请回复`)

// IsChinese reports whether more than a fifth of the runes in text are CJK
// unified ideographs.
func IsChinese(text string) bool {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return false
	}
	han := 0
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			han++
		}
	}
	return han > 0 && float64(han)/float64(total) > chineseRatio
}

// Sign appends Signature unless text already carries a closing idiom.
func Sign(text string) string {
	if closingIdiom.MatchString(text) {
		return text
	}
	return text + Signature
}

// Translator converts text between languages. Implementations return the
// input unchanged when translation is unavailable.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) string
}

// LLMTranslator translates with a chat model.
type LLMTranslator struct {
	client llm.Client
	logger *logging.Logger
}

func NewLLMTranslator(client llm.Client, logger *logging.Logger) *LLMTranslator {
	if client == nil {
		panic("localize: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMTranslator{client: client, logger: logger}
}

func (t *LLMTranslator) Translate(ctx context.Context, text, from, to string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	prompt := fmt.Sprintf("Translate the following %s text to %s. Only return the translated text, no explanation.\n\n%s", from, to, text)
	resp, err := t.client.Complete(ctx, llm.Request{
		System:   []string{"You are a professional translator."},
		Messages: []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: prompt}},
	})
	if err != nil {
		t.logger.Error("translation failed", "error", err, "to", to)
		return text
	}
	out := strings.TrimSpace(resp.Text)
	if out == "" {
		return text
	}
	return out
}

// Localizer rewrites English replies into the customer's language.
type Localizer struct {
	translator Translator
}

func New(translator Translator) *Localizer {
	if translator == nil {
		panic("localize: translator cannot be nil")
	}
	return &Localizer{translator: translator}
}

// Localize translates reply to Chinese and signs it when inbound is Chinese;
// otherwise reply is returned as is.
func (l *Localizer) Localize(ctx context.Context, inbound, reply string) string {
	if !IsChinese(inbound) {
		return reply
	}
	return Sign(l.translator.Translate(ctx, reply, "English", "Chinese"))
}
