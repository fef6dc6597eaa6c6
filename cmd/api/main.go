package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/helenaexplora/explora-platform/cmd/mainconfig"
	"github.com/helenaexplora/explora-platform/internal/app/bootstrap"
	appconfig "github.com/helenaexplora/explora-platform/internal/config"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

const shutdownGrace = 30 * time.Second

func main() {
	// Local runs read .env; deployed environments set real variables.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("relay server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	logger.Info("starting explora relay server", "env", cfg.Env, "port", cfg.Port)

	app, err := bootstrap.BuildApp(ctx, cfg, logger, bootstrap.AppOptions{
		LoadAWS: mainconfig.Loader(cfg),
	})
	if err != nil {
		return fmt.Errorf("wire relays: %w", err)
	}
	defer app.Close()
	logger.Info("relays wired", "email_provider", app.EmailProvider, "chat_provider", app.ChatProvider)

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return serve(ctx, newServer(cfg, app.Handler), ln, logger)
}

// serve runs srv on ln until ctx is cancelled, then drains in-flight
// requests (chat streams included) for up to shutdownGrace.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newServer sizes the write timeout to outlast a chat stream.
func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ChatUpstreamTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
