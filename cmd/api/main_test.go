package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/helenaexplora/explora-platform/internal/config"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

func TestNewServerOutlastsChatStream(t *testing.T) {
	cfg := &appconfig.Config{Port: "9090", ChatUpstreamTimeout: 2 * time.Minute}
	srv := newServer(cfg, http.NotFoundHandler())

	assert.Equal(t, ":9090", srv.Addr)
	assert.Greater(t, srv.WriteTimeout, cfg.ChatUpstreamTimeout)
	assert.NotZero(t, srv.ReadHeaderTimeout)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv := newServer(&appconfig.Config{ChatUpstreamTimeout: time.Second}, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, ln, logging.New("error")) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
