package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/helenaexplora/explora-platform/internal/chatclient"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

func TestRunPrintsStreamedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Olá, \"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"bem-vinda!\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := chatclient.NewClient(srv.URL, "", chatclient.WithLogger(logging.NewWithWriter("error", io.Discard)))
	var out bytes.Buffer

	if err := run(context.Background(), client.NewConversation(), strings.NewReader("oi\n\n"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	if !strings.HasPrefix(got, "Olá! 👋") {
		t.Fatalf("expected welcome first, got %q", got)
	}
	if !strings.Contains(got, "Olá, bem-vinda!") {
		t.Fatalf("expected streamed reply, got %q", got)
	}
}

func TestRunPrintsApologyOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Erro ao processar mensagem."}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := chatclient.NewClient(srv.URL, "", chatclient.WithLogger(logging.NewWithWriter("error", io.Discard)))
	var out bytes.Buffer

	if err := run(context.Background(), client.NewConversation(), strings.NewReader("oi\n"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Desculpe, ocorreu um erro.") {
		t.Fatalf("expected apology, got %q", out.String())
	}
}
