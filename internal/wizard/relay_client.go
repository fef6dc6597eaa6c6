package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helenaexplora/explora-platform/internal/leads"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

const (
	// LeadPath is the lead relay route relative to the public base URL.
	LeadPath = "/functions/v1/send-lead-email"

	defaultTimeout = 20 * time.Second
)

// RelayError carries the relay's status and error message. RetryAfter is
// filled from the relay's Retry-After header on 429 responses.
type RelayError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("lead relay returned %d: %s", e.Status, e.Message)
}

// RelayClient submits leads to the lead relay over HTTP.
type RelayClient struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	logger     *logging.Logger
}

// NewRelayClient constructs a relay client for the public base URL. anonKey
// is sent as a bearer token when set.
func NewRelayClient(baseURL, anonKey string, logger *logging.Logger) *RelayClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &RelayClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		logger:     logger,
	}
}

// SubmitLead posts the record with its verification token.
func (c *RelayClient) SubmitLead(ctx context.Context, rec *leads.Record, captchaToken string) error {
	payload, err := json.Marshal(leads.Submission{Record: *rec, TurnstileToken: captchaToken})
	if err != nil {
		return fmt.Errorf("wizard: marshal lead: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+LeadPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("wizard: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.anonKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wizard: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("wizard: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var wrapped struct {
			Error string `json:"error"`
		}
		msg := string(body)
		if json.Unmarshal(body, &wrapped) == nil && wrapped.Error != "" {
			msg = wrapped.Error
		}
		c.logger.Warn("lead relay non-2xx response", "status", resp.StatusCode)
		return &RelayError{Status: resp.StatusCode, Message: msg, RetryAfter: retryAfter(resp.Header)}
	}
	return nil
}

func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
