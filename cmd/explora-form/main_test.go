package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helenaexplora/explora-platform/internal/captcha"
	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/internal/leads"
	"github.com/helenaexplora/explora-platform/internal/wizard"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// completeAnswers fills the usa-interests variant, failing step 1 once.
var completeAnswers = []string{
	// personal, first try with a too short name
	"M", "maria@example.com", "1", "",
	// personal again; blank keeps the previous answer
	"Maria Silva", "", "", "",
	// education
	"4", "Engenharia", "2020",
	// professional: seeking opportunities shows previousWork
	"2", "Estágio em TI",
	// financial
	"4",
	// interests
	"1,3",
	// english
	"2",
	// communication
	"1", "1", "",
}

func relayServer(t *testing.T, status int, got *leads.Submission) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wizard.LeadPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = io.WriteString(w, `{"success":true}`)
			return
		}
		_, _ = io.WriteString(w, `{"error":"Erro interno."}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runForm(t *testing.T, srv *httptest.Server, answers []string) (string, error) {
	t.Helper()
	schema, err := leads.Variant(leads.DefaultVariant)
	require.NoError(t, err)
	relay := wizard.NewRelayClient(srv.URL, "anon", logging.New("error"))
	var out strings.Builder
	err = run(context.Background(), schema, relay, captcha.BypassToken, i18n.NewLocalizer("pt-BR"),
		strings.NewReader(strings.Join(answers, "\n")+"\n"), &out)
	return out.String(), err
}

func TestRunSubmitsCompletedForm(t *testing.T) {
	var got leads.Submission
	srv := relayServer(t, http.StatusOK, &got)

	out, err := runForm(t, srv, completeAnswers)
	require.NoError(t, err)

	assert.Contains(t, out, "fullName")
	assert.Contains(t, out, "[success]")
	assert.Equal(t, captcha.BypassToken, got.TurnstileToken)
	assert.Equal(t, "Maria Silva", got.FullName)
	assert.Equal(t, "maria@example.com", got.Email)
	assert.Equal(t, "Brasil", got.Country)
	assert.Equal(t, "Estágio em TI", got.PreviousWork)
	assert.Equal(t, []string{
		"Como funcionam os programas de estudo nos EUA",
		"CPT e OPT (explicações gerais)",
	}, got.USAInterests)
	assert.Empty(t, got.WorkArea)
}

func TestRunReportsRelayFailure(t *testing.T) {
	var got leads.Submission
	srv := relayServer(t, http.StatusInternalServerError, &got)

	out, err := runForm(t, srv, completeAnswers)
	require.Error(t, err)

	var relayErr *wizard.RelayError
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, http.StatusInternalServerError, relayErr.Status)
	assert.Contains(t, out, "[error]")
}

func TestRunStopsWhenInputEnds(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := runForm(t, srv, []string{"Maria Silva"})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPickOption(t *testing.T) {
	f := leads.FieldSpec{Options: []string{"Email", "WhatsApp"}}
	assert.Equal(t, "WhatsApp", pickOption(f, "2"))
	assert.Equal(t, "3", pickOption(f, "3"))
	assert.Equal(t, "Zoom", pickOption(f, "Zoom"))
}
