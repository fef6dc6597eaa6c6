package chatrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GatewayProvider streams completions from an OpenAI-compatible gateway and
// passes its SSE body through untouched.
type GatewayProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewGatewayProvider creates a gateway provider. httpClient may be nil.
func NewGatewayProvider(baseURL, apiKey, model string, httpClient *http.Client) (*GatewayProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("chatrelay: gateway api key is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultGatewayURL
	}
	if httpClient == nil {
		// No client timeout; the stream lifetime is bounded by the request context.
		httpClient = &http.Client{}
	}
	return &GatewayProvider{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}, nil
}

func (p *GatewayProvider) Name() string { return "gateway" }

type gatewayRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Open posts the conversation with stream enabled.
func (p *GatewayProvider) Open(ctx context.Context, req CompletionRequest) (io.ReadCloser, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	payload, err := json.Marshal(gatewayRequest{Model: model, Messages: req.Messages, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("chatrelay: encode gateway request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("chatrelay: build gateway request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chatrelay: gateway request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp.Body, nil
}
