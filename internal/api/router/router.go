package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/helenaexplora/explora-platform/internal/http/middleware"
	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/internal/ratelimit"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// Route paths served by the relay.
const (
	LeadPath   = "/functions/v1/send-lead-email"
	ChatPath   = "/functions/v1/chat"
	HealthPath = "/health"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Localizer          *i18n.Localizer
	LeadHandler        http.Handler
	ChatHandler        http.Handler
	ChatLimiter        ratelimit.Limiter
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware. No compression: chat responses are flushed per chunk.
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get(HealthPath, health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/functions/v1", func(fn chi.Router) {
		if cfg.LeadHandler != nil {
			fn.Method(http.MethodPost, "/send-lead-email", cfg.LeadHandler)
		}
		if cfg.ChatHandler != nil {
			var guards []func(http.Handler) http.Handler
			if cfg.ChatLimiter != nil {
				guards = append(guards, httpmiddleware.RateLimit(cfg.ChatLimiter, cfg.Localizer, i18n.KeyChatRateLimited, cfg.Logger))
			}
			fn.With(guards...).Method(http.MethodPost, "/chat", cfg.ChatHandler)
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
