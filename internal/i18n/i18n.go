// Package i18n holds the user-facing strings shown by the relays, the form
// controller and the chat client. Portuguese (Brazil) is the base locale;
// English is served when the caller asks for it.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Message keys.
const (
	KeyRateLimited        = "error.rate_limited"
	KeyVerificationFailed = "error.verification_failed"
	KeyInvalidRequest     = "error.invalid_request"
	KeyValidationFailed   = "error.validation_failed"
	KeyInternal           = "error.internal"

	KeyChatRateLimited      = "chat.rate_limited"
	KeyChatCreditsExhausted = "chat.credits_exhausted"
	KeyChatFailed           = "chat.failed"
	KeyChatApology          = "chat.apology"
	KeyChatWelcome          = "chat.welcome"
	KeyChatGuarded          = "chat.guarded"

	KeyCaptchaPending     = "form.captcha_pending"
	KeyCaptchaUnavailable = "form.captcha_unavailable"
	KeySubmitFailed       = "form.submit_failed"
	KeySubmitSuccess      = "form.submit_success"

	KeyFieldRequired      = "field.required"
	KeyFieldTooShort      = "field.too_short"
	KeyFieldTooLong       = "field.too_long"
	KeyFieldInvalidFormat = "field.invalid_format"
	KeyFieldInvalidEmail  = "field.invalid_email"
	KeyFieldInvalidOption = "field.invalid_option"

	KeyLeadSubject    = "email.lead_subject"
	KeyWelcomeSubject = "email.welcome_subject"
	KeyNoneSelected   = "email.none_selected"
	KeyNotProvided    = "email.not_provided"
)

// BaseLocale is the locale every catalog key must exist in.
var BaseLocale = language.BrazilianPortuguese

var supported = []language.Tag{language.BrazilianPortuguese, language.English}

var matcher = language.NewMatcher(supported)

//go:embed locales/*.yaml
var localeFS embed.FS

var registered = mustRegisterEmbedded()

func mustRegisterEmbedded() map[language.Tag]map[string]string {
	catalogs, err := Register(localeFS, "locales")
	if err != nil {
		panic(fmt.Sprintf("i18n: load embedded locales: %v", err))
	}
	return catalogs
}

// Register loads every <locale>.yaml file under dir and adds its messages to
// the default x/text catalog.
func Register(fsys fs.FS, dir string) (map[language.Tag]map[string]string, error) {
	paths, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("i18n: glob locales: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("i18n: no locale files in %s", dir)
	}

	out := make(map[language.Tag]map[string]string, len(paths))
	for _, p := range paths {
		tag, err := language.Parse(strings.TrimSuffix(path.Base(p), ".yaml"))
		if err != nil {
			return nil, fmt.Errorf("i18n: locale file %s: %w", p, err)
		}
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", p, err)
		}
		messages := map[string]string{}
		if err := yaml.Unmarshal(raw, &messages); err != nil {
			return nil, fmt.Errorf("i18n: decode %s: %w", p, err)
		}
		for key, msg := range messages {
			if err := message.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("i18n: register %s/%s: %w", tag, key, err)
			}
		}
		out[tag] = messages
	}
	return out, nil
}

// Localizer resolves the caller's locale and renders catalog messages.
type Localizer struct {
	fallback language.Tag
}

// NewLocalizer returns a localizer that falls back to defaultLocale when the
// caller expresses no usable preference.
func NewLocalizer(defaultLocale string) *Localizer {
	fallback := BaseLocale
	if tag, err := language.Parse(strings.TrimSpace(defaultLocale)); err == nil {
		fallback = closest(tag)
	}
	return &Localizer{fallback: fallback}
}

// Fallback returns the locale used when no preference matches.
func (l *Localizer) Fallback() language.Tag {
	if l == nil {
		return BaseLocale
	}
	return l.fallback
}

// Match picks the supported locale best matching an Accept-Language value.
func (l *Localizer) Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return l.Fallback()
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return l.Fallback()
	}
	return supported[idx]
}

// FromRequest resolves the locale for an HTTP request.
func (l *Localizer) FromRequest(r *http.Request) language.Tag {
	if r == nil {
		return l.Fallback()
	}
	return l.Match(r.Header.Get("Accept-Language"))
}

// Text renders key in the given locale.
func (l *Localizer) Text(tag language.Tag, key string, args ...any) string {
	return message.NewPrinter(tag).Sprintf(key, args...)
}

// Default renders key in the fallback locale.
func (l *Localizer) Default(key string, args ...any) string {
	return l.Text(l.Fallback(), key, args...)
}

// Has reports whether key exists in the base catalog.
func Has(key string) bool {
	_, ok := registered[BaseLocale][key]
	return ok
}

func closest(tag language.Tag) language.Tag {
	_, idx, confidence := matcher.Match(tag)
	if confidence == language.No {
		return BaseLocale
	}
	return supported[idx]
}
