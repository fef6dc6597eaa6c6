// Package captcha bridges the lead form to the bot-verification widget and
// verifies submitted tokens on the relay side.
package captcha

import (
	"context"
	"sync"

	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// BypassToken is submitted when the widget failed client-side. The relay
// decides whether to honor it.
const BypassToken = "bypass"

// Container is the element id the widget renders into.
const Container = "turnstile-container"

// RenderOptions are the widget parameters and the three callbacks it fires.
type RenderOptions struct {
	SiteKey    string
	Container  string
	OnVerified func(token string)
	OnError    func()
	OnExpired  func()
}

// Widget is the external verification widget.
type Widget interface {
	Loaded() bool
	LoadScript(ctx context.Context) error
	Render(opts RenderOptions) (widgetID string, err error)
	Reset(widgetID string)
	Remove(widgetID string)
}

// Shim owns the token state for one mounted widget instance.
type Shim struct {
	widget  Widget
	siteKey string
	logger  *logging.Logger

	mu       sync.Mutex
	widgetID string
	token    string
	errored  bool
	mounted  bool
}

// NewShim returns an unmounted shim.
func NewShim(widget Widget, siteKey string, logger *logging.Logger) *Shim {
	if logger == nil {
		logger = logging.Default()
	}
	return &Shim{widget: widget, siteKey: siteKey, logger: logger}
}

// Mount loads the widget script when it is not loaded yet and renders the
// widget. A load or render failure behaves like the widget's error callback
// so the form stays usable.
func (s *Shim) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.mu.Unlock()

	if !s.widget.Loaded() {
		if err := s.widget.LoadScript(ctx); err != nil {
			s.logger.Warn("captcha script failed to load", "error", err)
			s.onError()
			return
		}
	}

	id, err := s.widget.Render(RenderOptions{
		SiteKey:    s.siteKey,
		Container:  Container,
		OnVerified: s.onVerified,
		OnError:    s.onError,
		OnExpired:  s.onExpired,
	})
	if err != nil {
		s.logger.Warn("captcha render failed", "error", err)
		s.onError()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		// torn down while rendering
		s.widget.Remove(id)
		return
	}
	s.widgetID = id
	if s.errored {
		// a remount succeeded after an earlier failure
		s.token = ""
		s.errored = false
	}
}

// Teardown removes the widget. Callbacks fired afterwards are ignored.
func (s *Shim) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.widgetID != "" {
		s.widget.Remove(s.widgetID)
		s.widgetID = ""
	}
	s.mounted = false
}

// Reset clears the token and asks the widget for a new challenge. When the
// widget never rendered there is nothing to issue a new token, so the bypass
// stays and the next Mount retries the load.
func (s *Shim) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.widgetID == "" && s.errored {
		s.mounted = false
		return
	}
	s.token = ""
	s.errored = false
	if s.widgetID != "" {
		s.widget.Reset(s.widgetID)
	}
}

// Token returns the current token, which is BypassToken after an error.
func (s *Shim) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Errored reports whether the widget failed.
func (s *Shim) Errored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errored
}

// SubmissionToken is the value sent with the lead.
func (s *Shim) SubmissionToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errored {
		return BypassToken
	}
	return s.token
}

func (s *Shim) onVerified(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.token = token
	s.errored = false
}

func (s *Shim) onError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.token = BypassToken
	s.errored = true
}

func (s *Shim) onExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.token = ""
	s.errored = false
}
