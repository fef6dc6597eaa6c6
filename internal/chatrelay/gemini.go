package chatrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider streams completions directly from the Gemini API and
// re-frames them as OpenAI-style SSE chunks.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("chatrelay: gemini api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("chatrelay: failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// Open starts a chat with the conversation history and streams the reply to
// the final user turn. The first chunk is read before returning so upstream
// rejections surface as errors instead of a broken stream.
func (p *GeminiProvider) Open(ctx context.Context, req CompletionRequest) (io.ReadCloser, error) {
	model := p.client.GenerativeModel(p.model)
	if sys := req.System(); sys != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(sys))
	}

	history, last, err := geminiHistory(req.Turns())
	if err != nil {
		return nil, err
	}
	cs := model.StartChat()
	cs.History = history

	iter := cs.SendMessageStream(ctx, genai.Text(last))
	first, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return pipeFrames(func(emitFunc) error { return nil }), nil
	}
	if err != nil {
		return nil, geminiError(err)
	}

	return pipeFrames(func(emit emitFunc) error {
		if err := emit(geminiText(first)); err != nil {
			return err
		}
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("chatrelay: gemini stream: %w", err)
			}
			if err := emit(geminiText(resp)); err != nil {
				return err
			}
		}
	}), nil
}

// geminiHistory splits turns into chat history and the final user message.
func geminiHistory(turns []Message) ([]*genai.Content, string, error) {
	if len(turns) == 0 || turns[len(turns)-1].Role != RoleUser {
		return nil, "", errors.New("chatrelay: conversation must end with a user message")
	}
	history := make([]*genai.Content, 0, len(turns)-1)
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return history, turns[len(turns)-1].Content, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func geminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return &UpstreamError{Status: apiErr.Code, Body: apiErr.Message}
	}
	return fmt.Errorf("chatrelay: gemini request: %w", err)
}
