// Package chatclient drives a streaming conversation with the chat relay: it
// keeps the message history, posts it, and grows the assistant reply as
// deltas arrive.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

// ChatPath is the relay route the client posts to.
const ChatPath = "/functions/v1/chat"

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrEmptyMessage is returned when Send is called with blank text.
	ErrEmptyMessage = errors.New("chatclient: message is empty")
	// ErrSendInFlight is returned while a previous Send is still streaming.
	ErrSendInFlight = errors.New("chatclient: a message is already being sent")
	// ErrEmptyReply is returned when the stream finished without content.
	ErrEmptyReply = errors.New("chatclient: relay returned no content")
)

// Message is one entry of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StatusError reports a non-success response from the relay.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chatclient: relay returned %d", e.Status)
	}
	return fmt.Sprintf("chatclient: relay returned %d: %s", e.Status, e.Message)
}

// StreamResult summarizes one streamed reply.
type StreamResult struct {
	Deltas    int
	Malformed int
	Truncated bool
}

// Client posts conversations to the chat relay.
type Client struct {
	httpClient *http.Client
	endpoint   string
	anonKey    string
	loc        *i18n.Localizer
	tag        language.Tag
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for relay calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLocale sets the language for the welcome and apology messages.
func WithLocale(loc *i18n.Localizer, tag language.Tag) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
		c.tag = tag
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the relay at baseURL.
func NewClient(baseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		endpoint:   strings.TrimRight(baseURL, "/") + ChatPath,
		anonKey:    anonKey,
		loc:        i18n.NewLocalizer(""),
		tag:        i18n.BaseLocale,
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream posts messages and calls onDelta for every decoded content fragment.
func (c *Client) Stream(ctx context.Context, messages []Message, onDelta func(string)) (StreamResult, error) {
	payload, err := json.Marshal(struct {
		Messages []Message `json:"messages"`
	}{Messages: messages})
	if err != nil {
		return StreamResult{}, fmt.Errorf("chatclient: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return StreamResult{}, fmt.Errorf("chatclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Accept-Language", c.tag.String())
	if c.anonKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StreamResult{}, fmt.Errorf("chatclient: relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
		return StreamResult{}, &StatusError{Status: resp.StatusCode, Message: body.Error}
	}

	dec := NewDecoder()
	var result StreamResult
	emit := func(deltas []string) {
		for _, delta := range deltas {
			result.Deltas++
			onDelta(delta)
		}
	}

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			deltas, done := dec.Feed(buf[:n])
			emit(deltas)
			if done {
				break
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			result.Malformed = dec.Malformed()
			return result, fmt.Errorf("chatclient: read stream: %w", readErr)
		}
	}
	emit(dec.Finish())
	result.Malformed = dec.Malformed()
	result.Truncated = dec.Truncated()
	if result.Truncated {
		c.logger.Warn("chat stream ended without done marker", "deltas", result.Deltas, "malformed", result.Malformed)
	}
	return result, nil
}

// Conversation is the state a chat widget renders: an ordered message list
// that starts with the assistant's welcome.
type Conversation struct {
	client *Client

	mu        sync.Mutex
	messages  []Message
	inFlight  bool
	unmounted bool
	observers []func([]Message)
	last      StreamResult
}

// NewConversation starts a conversation with the localized welcome message.
func (c *Client) NewConversation() *Conversation {
	return &Conversation{
		client:   c,
		messages: []Message{{Role: RoleAssistant, Content: c.loc.Text(c.tag, i18n.KeyChatWelcome)}},
	}
}

// OnChange registers an observer that receives a snapshot after every change.
func (cv *Conversation) OnChange(fn func([]Message)) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.observers = append(cv.observers, fn)
}

// Messages returns a copy of the conversation.
func (cv *Conversation) Messages() []Message {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.snapshot()
}

// InFlight reports whether a Send is streaming.
func (cv *Conversation) InFlight() bool {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.inFlight
}

// LastResult returns the summary of the most recent completed stream.
func (cv *Conversation) LastResult() StreamResult {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.last
}

// Unmount stops state updates. An in-flight request is left to finish but
// its output is discarded.
func (cv *Conversation) Unmount() {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.unmounted = true
}

// Send appends the user's message and an empty assistant reply, then streams
// the relay response into that reply. On failure the reply is replaced with
// an apology and the error is returned.
func (cv *Conversation) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	cv.mu.Lock()
	if cv.inFlight {
		cv.mu.Unlock()
		return ErrSendInFlight
	}
	if cv.unmounted {
		cv.mu.Unlock()
		return nil
	}
	cv.inFlight = true
	cv.messages = append(cv.messages, Message{Role: RoleUser, Content: text})
	history := cv.snapshot()
	cv.messages = append(cv.messages, Message{Role: RoleAssistant})
	reply := len(cv.messages) - 1
	cv.publishLocked()
	cv.mu.Unlock()

	var running strings.Builder
	result, err := cv.client.Stream(ctx, history, func(delta string) {
		running.WriteString(delta)
		cv.mu.Lock()
		if cv.unmounted {
			cv.mu.Unlock()
			return
		}
		cv.messages[reply].Content = running.String()
		cv.publishLocked()
		cv.mu.Unlock()
	})
	if err == nil && running.Len() == 0 {
		err = ErrEmptyReply
	}

	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.inFlight = false
	cv.last = result
	if err != nil {
		cv.client.logger.Error("chat send failed", "error", err)
		if !cv.unmounted {
			cv.messages[reply].Content = cv.client.loc.Text(cv.client.tag, i18n.KeyChatApology)
			cv.publishLocked()
		}
		return err
	}
	return nil
}

func (cv *Conversation) snapshot() []Message {
	out := make([]Message, len(cv.messages))
	copy(out, cv.messages)
	return out
}

// publishLocked notifies observers; cv.mu must be held. Observers must not
// call back into the conversation.
func (cv *Conversation) publishLocked() {
	if cv.unmounted || len(cv.observers) == 0 {
		return
	}
	snap := cv.snapshot()
	for _, fn := range cv.observers {
		fn(snap)
	}
}
