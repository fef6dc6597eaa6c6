package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/helenaexplora/explora-platform/internal/config"
	"github.com/helenaexplora/explora-platform/internal/ratelimit"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// Redis key namespaces for the two rate-limited routes.
const (
	leadKeyPrefix = "ratelimit:lead:"
	chatKeyPrefix = "ratelimit:chat:"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// Limiters holds the per-route rate limiters. Chat is nil when disabled.
type Limiters struct {
	Lead  ratelimit.Limiter
	Chat  ratelimit.Limiter
	close []func()
}

// Close stops background sweepers.
func (l *Limiters) Close() {
	for _, fn := range l.close {
		fn()
	}
}

// BuildRateLimiters selects the limiter backend. The Redis backend is used
// only when configured and reachable; otherwise counters stay in process.
func BuildRateLimiters(cfg *appconfig.Config, redisClient redis.Cmdable, logger *logging.Logger) *Limiters {
	if logger == nil {
		logger = logging.Default()
	}
	out := &Limiters{}

	if cfg.RateLimitBackend == "redis" && redisClient != nil {
		base := ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)
		out.Lead = base.WithPrefix(leadKeyPrefix)
		if cfg.ChatRateLimitMax > 0 {
			out.Chat = ratelimit.NewRedisLimiter(redisClient, cfg.ChatRateLimitMax, cfg.RateLimitWindow).WithPrefix(chatKeyPrefix)
		}
		logger.Info("rate limiting backed by redis", "limit", cfg.RateLimitMax, "window", cfg.RateLimitWindow.String())
		return out
	}
	if cfg.RateLimitBackend == "redis" {
		logger.Warn("redis rate limiting requested but redis unavailable; using memory")
	}

	lead := ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, cfg.RateLimitWindow)
	out.Lead = lead
	out.close = append(out.close, lead.Close)
	if cfg.ChatRateLimitMax > 0 {
		chat := ratelimit.NewMemoryLimiter(cfg.ChatRateLimitMax, cfg.RateLimitWindow, cfg.RateLimitWindow)
		out.Chat = chat
		out.close = append(out.close, chat.Close)
	}
	return out
}
