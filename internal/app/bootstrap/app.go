package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/helenaexplora/explora-platform/internal/api/router"
	"github.com/helenaexplora/explora-platform/internal/captcha"
	"github.com/helenaexplora/explora-platform/internal/chatrelay"
	appconfig "github.com/helenaexplora/explora-platform/internal/config"
	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/internal/leadrelay"
	"github.com/helenaexplora/explora-platform/internal/leads"
	"github.com/helenaexplora/explora-platform/internal/notify"
	"github.com/helenaexplora/explora-platform/internal/observability/metrics"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// AppOptions carries dependencies the binaries supply.
type AppOptions struct {
	// LoadAWS is called when SES or Bedrock is selected.
	LoadAWS func(ctx context.Context) (aws.Config, error)
	// Registry receives the relay metrics; nil creates a private registry.
	Registry *prometheus.Registry
	// Redis overrides the client built from REDIS_ADDR.
	Redis redis.Cmdable
	// SES overrides the SES client built from the AWS config.
	SES notify.SESAPI
}

// App is the wired relay server.
type App struct {
	Handler       http.Handler
	Metrics       *metrics.RelayMetrics
	EmailProvider string
	ChatProvider  string

	closers []func()
}

// Close releases limiter sweepers and upstream clients.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// BuildApp wires both relays, the router and metrics from config.
func BuildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts AppOptions) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	app := &App{}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	app.Metrics = metrics.NewRelayMetrics(reg)
	loc := i18n.NewLocalizer(cfg.DefaultLocale)

	schema, err := leads.Variant(cfg.FormVariant)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: form variant: %w", err)
	}

	var awsCfg *aws.Config
	if NeedsAWS(cfg) && opts.LoadAWS != nil {
		loaded, err := opts.LoadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	ses := opts.SES
	if ses == nil && cfg.EmailProvider == EmailProviderSES && awsCfg != nil {
		ses = sesv2.NewFromConfig(*awsCfg)
	}
	sender, emailProvider, err := BuildEmailSender(cfg, ses, logger)
	if err != nil {
		return nil, err
	}
	app.EmailProvider = emailProvider

	redisClient := opts.Redis
	if redisClient == nil && cfg.RateLimitBackend == "redis" {
		if c := BuildRedisClient(ctx, cfg, logger, true); c != nil {
			redisClient = c
			app.closers = append(app.closers, func() { _ = c.Close() })
		}
	}
	limiters := BuildRateLimiters(cfg, redisClient, logger)
	app.closers = append(app.closers, limiters.Close)

	policy, err := BuildCaptchaPolicy(cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	composer := leadrelay.NewComposer(schema, loc, cfg.LeadRecipientEmail)
	service := leadrelay.NewService(policy, schema, composer, sender, app.Metrics, logger)
	leadHandler := leadrelay.NewHandler(service, limiters.Lead, loc, app.Metrics, logger)

	provider, err := BuildChatProvider(ctx, cfg, awsCfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	var chatHandler http.Handler
	if provider != nil {
		app.ChatProvider = provider.Name()
		chatHandler = chatrelay.NewHandler(provider, "", cfg.ChatUpstreamTimeout, loc, app.Metrics, logger)
		if c, ok := provider.(interface{ Close() error }); ok {
			app.closers = append(app.closers, func() { _ = c.Close() })
		}
	}

	app.Handler = router.New(&router.Config{
		Logger:             logger,
		Localizer:          loc,
		LeadHandler:        leadHandler,
		ChatHandler:        chatHandler,
		ChatLimiter:        limiters.Chat,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	logger.Info("relays wired",
		"form_variant", schema.ID(),
		"email_provider", app.EmailProvider,
		"chat_provider", app.ChatProvider,
		"rate_limit_backend", cfg.RateLimitBackend,
	)
	return app, nil
}

// BuildCaptchaPolicy returns the lead relay's verification policy. Without a
// secret no provider is called; that is refused in production.
func BuildCaptchaPolicy(cfg *appconfig.Config, logger *logging.Logger) (captcha.Policy, error) {
	if logger == nil {
		logger = logging.Default()
	}
	policy := captcha.Policy{
		AllowBypass: cfg.CaptchaAllowBypass,
		FailOpen:    cfg.CaptchaFailOpen,
		Logger:      logger,
	}
	if cfg.TurnstileSecretKey != "" {
		policy.Verifier = captcha.NewTurnstileVerifier(cfg.TurnstileSecretKey, cfg.TurnstileVerifyURL)
		return policy, nil
	}
	if cfg.IsProduction() {
		return captcha.Policy{}, fmt.Errorf("bootstrap: TURNSTILE_SECRET_KEY is required in production")
	}
	logger.Warn("turnstile secret not set; tokens accepted unverified")
	return policy, nil
}
