package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements Client with the chat completions API.
type OpenAIClient struct {
	api   chatClient
	model string
}

// NewOpenAIClient builds a client for apiKey with a default model.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return NewOpenAIClientWithAPI(openai.NewClient(apiKey), model)
}

// NewOpenAIClientWithAPI lets callers supply the chat completion transport.
func NewOpenAIClientWithAPI(api chatClient, model string) *OpenAIClient {
	if api == nil {
		panic("llm: openai chat client cannot be nil")
	}
	if strings.TrimSpace(model) == "" {
		model = openai.GPT4o
	}
	return &OpenAIClient{api: api, model: model}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	model := c.model
	if strings.TrimSpace(req.Model) != "" {
		model = req.Model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.System)+len(req.Messages))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: block})
	}
	for _, msg := range req.Messages {
		var role string
		switch msg.Role {
		case ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		case ChatRoleUser:
			role = openai.ChatMessageRoleUser
		case ChatRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			return Response{}, fmt.Errorf("llm: unsupported role %q", msg.Role)
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	call := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		call.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature > 0 {
		call.Temperature = req.Temperature
	}
	if req.TopP > 0 {
		call.TopP = req.TopP
	}

	resp, err := c.api.CreateChatCompletion(ctx, call)
	if err != nil {
		return Response{}, fmt.Errorf("llm: openai completion (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("llm: openai returned no choices")
	}
	return Response{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		StopReason: string(resp.Choices[0].FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}
