package i18n

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestEmbeddedCatalogsShareKeys(t *testing.T) {
	base := registered[BaseLocale]
	require.NotEmpty(t, base)
	english := registered[language.English]
	require.NotEmpty(t, english)

	for key := range base {
		assert.Contains(t, english, key, "english catalog missing %s", key)
	}
	for key := range english {
		assert.Contains(t, base, key, "base catalog missing %s", key)
	}
}

func TestLocalizerMatch(t *testing.T) {
	loc := NewLocalizer("pt-BR")

	tests := []struct {
		header string
		want   language.Tag
	}{
		{"", language.BrazilianPortuguese},
		{"en-US,en;q=0.9", language.English},
		{"pt-PT,pt;q=0.8", language.BrazilianPortuguese},
		{"fr-FR", language.BrazilianPortuguese},
		{"not a header;;", language.BrazilianPortuguese},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, loc.Match(tt.header))
		})
	}
}

func TestLocalizerText(t *testing.T) {
	loc := NewLocalizer("")

	assert.Equal(t, "Muitas requisições. Tente novamente em 1 minuto.", loc.Default(KeyRateLimited))
	assert.Equal(t, "Credits exhausted.", loc.Text(language.English, KeyChatCreditsExhausted))
	assert.Equal(t, "Deve ter pelo menos 2 caracteres", loc.Default(KeyFieldTooShort, 2))
	assert.True(t, strings.HasPrefix(loc.Default(KeyChatWelcome), "Olá!"))
}

func TestLocalizerFromRequest(t *testing.T) {
	loc := NewLocalizer("en")
	assert.Equal(t, language.English, loc.Fallback())

	req := httptest.NewRequest("POST", "/functions/v1/chat", nil)
	req.Header.Set("Accept-Language", "pt-BR")
	assert.Equal(t, language.BrazilianPortuguese, loc.FromRequest(req))
	assert.Equal(t, language.English, loc.FromRequest(nil))
}

func TestHas(t *testing.T) {
	assert.True(t, Has(KeyLeadSubject))
	assert.False(t, Has("missing.key"))
}
