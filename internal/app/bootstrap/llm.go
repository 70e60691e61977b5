package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/bl-concierge/internal/config"
	"github.com/wolfman30/bl-concierge/internal/llm"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// BuildLLMClient wires the provider named by LLM_PROVIDER. Missing
// credentials yield llm.Unconfigured so the service still runs on its
// fallback answers. A Gemini client must be closed by the caller.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.LLMProvider {
	case "", "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			logger.Warn("OPENAI_API_KEY not set; language model disabled")
			return llm.Unconfigured{}, nil
		}
		primary := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIPrimaryModel)
		logger.Info("language model configured", "provider", "openai", "model", cfg.OpenAIPrimaryModel, "fallback", cfg.OpenAIFallbackModel)
		return withFallback(primary, cfg.OpenAIPrimaryModel, cfg.OpenAIFallbackModel, func(model string) llm.Client {
			return llm.NewOpenAIClient(cfg.OpenAIAPIKey, model)
		}, logger), nil

	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			logger.Warn("BEDROCK_MODEL_ID not set; language model disabled")
			return llm.Unconfigured{}, nil
		}
		api := bedrockruntime.NewFromConfig(awsCfg)
		primary := llm.NewBedrockClient(api, cfg.BedrockModelID)
		logger.Info("language model configured", "provider", "bedrock", "model", cfg.BedrockModelID, "fallback", cfg.BedrockFallbackModelID)
		return withFallback(primary, cfg.BedrockModelID, cfg.BedrockFallbackModelID, func(model string) llm.Client {
			return llm.NewBedrockClient(api, model)
		}, logger), nil

	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			logger.Warn("GEMINI_API_KEY not set; language model disabled")
			return llm.Unconfigured{}, nil
		}
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		logger.Info("language model configured", "provider", "gemini", "model", cfg.GeminiModelID)
		return client, nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func withFallback(primary llm.Client, primaryModel, fallbackModel string, build func(string) llm.Client, logger *logging.Logger) llm.Client {
	fallbackModel = strings.TrimSpace(fallbackModel)
	if fallbackModel == "" || fallbackModel == primaryModel {
		return primary
	}
	return llm.NewRateLimitFallback(primary, build(fallbackModel), logger)
}
