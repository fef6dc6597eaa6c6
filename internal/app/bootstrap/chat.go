package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/helenaexplora/explora-platform/internal/chatrelay"
	appconfig "github.com/helenaexplora/explora-platform/internal/config"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// Chat provider names accepted in CHAT_PROVIDER.
const (
	ChatProviderGateway = "gateway"
	ChatProviderGemini  = "gemini"
	ChatProviderBedrock = "bedrock"
)

// BuildChatProvider wires the completion provider. awsCfg is only read for
// the Bedrock provider. A nil provider with nil error means chat is disabled.
func BuildChatProvider(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (chatrelay.Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.ChatProvider {
	case ChatProviderGateway, "":
		if strings.TrimSpace(cfg.ChatGatewayAPIKey) == "" {
			return disabledChat(cfg, logger, "CHAT_GATEWAY_API_KEY is empty")
		}
		p, err := chatrelay.NewGatewayProvider(cfg.ChatGatewayURL, cfg.ChatGatewayAPIKey, cfg.ChatModel, nil)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ChatProviderGemini:
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return disabledChat(cfg, logger, "GEMINI_API_KEY is empty")
		}
		p, err := chatrelay.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ChatProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return disabledChat(cfg, logger, "BEDROCK_MODEL_ID is empty")
		}
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: bedrock chat requires aws config")
		}
		p, err := chatrelay.NewBedrockProvider(bedrockruntime.NewFromConfig(*awsCfg, func(o *bedrockruntime.Options) {
			// throttling is surfaced to the visitor as 429, never retried
			o.RetryMaxAttempts = 1
		}), cfg.BedrockModelID)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown chat provider %q", cfg.ChatProvider)
	}
}

func disabledChat(cfg *appconfig.Config, logger *logging.Logger, reason string) (chatrelay.Provider, error) {
	if cfg.IsProduction() {
		return nil, fmt.Errorf("bootstrap: chat provider %q: %s", cfg.ChatProvider, reason)
	}
	logger.Warn("chat relay disabled", "provider", cfg.ChatProvider, "reason", reason)
	return nil, nil
}

// NeedsAWS reports whether the configured providers call AWS services.
func NeedsAWS(cfg *appconfig.Config) bool {
	return cfg.EmailProvider == EmailProviderSES || cfg.ChatProvider == ChatProviderBedrock
}
