package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helenaexplora/explora-platform/pkg/logging"
)

const (
	// DefaultVerifyURL is Cloudflare Turnstile's siteverify endpoint.
	DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

	verifyTimeout = 10 * time.Second
)

var (
	// ErrVerificationFailed is returned when the provider rejects the token.
	ErrVerificationFailed = errors.New("captcha: verification failed")

	// ErrMissingToken is returned when no token was submitted.
	ErrMissingToken = errors.New("captcha: token missing")

	// ErrUnavailable wraps transport and provider-side failures.
	ErrUnavailable = errors.New("captcha: verification service unavailable")
)

// Result is the provider's answer for one token.
type Result struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	Action     string   `json:"action,omitempty"`
}

// Verifier checks a token with the verification provider.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (Result, error)
}

// TurnstileVerifier calls the siteverify endpoint.
type TurnstileVerifier struct {
	httpClient *http.Client
	secret     string
	verifyURL  string
}

// NewTurnstileVerifier returns a verifier using the given secret key.
func NewTurnstileVerifier(secret, verifyURL string) *TurnstileVerifier {
	if strings.TrimSpace(verifyURL) == "" {
		verifyURL = DefaultVerifyURL
	}
	return &TurnstileVerifier{
		httpClient: &http.Client{Timeout: verifyTimeout},
		secret:     secret,
		verifyURL:  verifyURL,
	}
}

// Verify posts secret, response and remoteip form-encoded.
func (v *TurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (Result, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("captcha: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return result, nil
}

// Outcome records how a token was accepted.
type Outcome string

const (
	OutcomeVerified   Outcome = "verified"
	OutcomeBypass     Outcome = "bypass"
	OutcomeFailOpen   Outcome = "fail_open"
	OutcomeUnverified Outcome = "unverified"
)

// Policy applies the relay's trust decisions around a Verifier.
type Policy struct {
	Verifier Verifier
	// AllowBypass accepts BypassToken without calling the provider. Any
	// client can send it, so this trades bot protection for availability.
	AllowBypass bool
	// FailOpen accepts the token when the provider cannot be reached.
	FailOpen bool
	Logger   *logging.Logger
}

// Check decides whether a submission may proceed. A nil Verifier accepts
// every non-empty token as unverified, for local development.
func (p Policy) Check(ctx context.Context, token, remoteIP string) (Outcome, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	if token == BypassToken {
		if p.AllowBypass {
			p.logger().Warn("captcha bypass token accepted")
			return OutcomeBypass, nil
		}
		return "", ErrVerificationFailed
	}
	if p.Verifier == nil {
		return OutcomeUnverified, nil
	}

	result, err := p.Verifier.Verify(ctx, token, remoteIP)
	if err != nil {
		if p.FailOpen && errors.Is(err, ErrUnavailable) {
			p.logger().Error("captcha verification unavailable, failing open", "error", err)
			return OutcomeFailOpen, nil
		}
		return "", err
	}
	if !result.Success {
		p.logger().Warn("captcha verification rejected", "error_codes", result.ErrorCodes)
		return "", ErrVerificationFailed
	}
	return OutcomeVerified, nil
}

func (p Policy) logger() *logging.Logger {
	if p.Logger == nil {
		return logging.Default()
	}
	return p.Logger
}
