package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helenaexplora/explora-platform/internal/leads"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

func TestRelayClientSubmitLead(t *testing.T) {
	var got leads.Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, LeadPath, r.URL.Path)
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(srv.Close)

	client := NewRelayClient(srv.URL+"/", "anon", logging.Default())
	err := client.SubmitLead(context.Background(), &leads.Record{FullName: "Ana", USAInterests: []string{"Vida acadêmica"}}, "bypass")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.FullName)
	assert.Equal(t, []string{"Vida acadêmica"}, got.USAInterests)
	assert.Equal(t, "bypass", got.TurnstileToken)
}

func TestRelayClientSurfacesRelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Muitas requisições. Tente novamente em 1 minuto."}`))
	}))
	t.Cleanup(srv.Close)

	err := NewRelayClient(srv.URL, "", nil).SubmitLead(context.Background(), &leads.Record{}, "tok")
	var relayErr *RelayError
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, http.StatusTooManyRequests, relayErr.Status)
	assert.Contains(t, relayErr.Message, "Muitas")
	assert.Equal(t, 42*time.Second, relayErr.RetryAfter)
}

func TestRelayClientTransportErrorIsPrefixed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewRelayClient(url, "", nil).SubmitLead(context.Background(), &leads.Record{}, "tok")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "wizard: http request:"), err.Error())
}
