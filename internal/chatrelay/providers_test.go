package chatrelay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestGatewayProviderStreamsBody(t *testing.T) {
	const sse = "data: {\"choices\":[{\"delta\":{\"content\":\"Oi\"}}]}\n\ndata: [DONE]\n\n"
	var got gatewayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sse)
	}))
	defer srv.Close()

	p, err := NewGatewayProvider(srv.URL+"/", "secret", "google/gemini-2.5-flash", srv.Client())
	require.NoError(t, err)

	body, err := p.Open(context.Background(), NewCompletionRequest("", []Message{{Role: RoleUser, Content: "oi"}}))
	require.NoError(t, err)
	defer body.Close()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	assert.Equal(t, sse, string(raw))
	assert.True(t, got.Stream)
	assert.Equal(t, "google/gemini-2.5-flash", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
}

func TestGatewayProviderUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "payment required", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	p, err := NewGatewayProvider(srv.URL, "secret", "m", nil)
	require.NoError(t, err)

	_, err = p.Open(context.Background(), NewCompletionRequest("", []Message{{Role: RoleUser, Content: "oi"}}))
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusPaymentRequired, upstream.Status)
	assert.Equal(t, "payment required", upstream.Body)
}

func TestNewGatewayProviderRequiresKey(t *testing.T) {
	_, err := NewGatewayProvider("", " ", "m", nil)
	assert.Error(t, err)
}

func TestPipeFrames(t *testing.T) {
	body := pipeFrames(func(emit emitFunc) error {
		for _, part := range []string{"Olá", "", ", mundo"} {
			if err := emit(part); err != nil {
				return err
			}
		}
		return nil
	})
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	want := "data: {\"choices\":[{\"delta\":{\"content\":\"Olá\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\", mundo\"}}]}\n\n" +
		DoneFrame
	assert.Equal(t, want, string(raw))
}

func TestPipeFramesPropagatesError(t *testing.T) {
	boom := errors.New("stream reset")
	body := pipeFrames(func(emit emitFunc) error {
		_ = emit("parcial")
		return boom
	})
	raw, err := io.ReadAll(body)
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, string(raw), "[DONE]")
}

type fakeEventStream struct {
	events chan brtypes.ConverseStreamOutput
	err    error
	closed bool
}

func (f *fakeEventStream) Events() <-chan brtypes.ConverseStreamOutput { return f.events }
func (f *fakeEventStream) Err() error                                  { return f.err }
func (f *fakeEventStream) Close() error {
	f.closed = true
	return nil
}

func textDelta(s string) brtypes.ConverseStreamOutput {
	return &brtypes.ConverseStreamOutputMemberContentBlockDelta{
		Value: brtypes.ContentBlockDeltaEvent{Delta: &brtypes.ContentBlockDeltaMemberText{Value: s}},
	}
}

func TestRelayBedrockStream(t *testing.T) {
	stream := &fakeEventStream{events: make(chan brtypes.ConverseStreamOutput, 4)}
	stream.events <- &brtypes.ConverseStreamOutputMemberMessageStart{}
	stream.events <- textDelta("CPT e ")
	stream.events <- textDelta("OPT")
	stream.events <- &brtypes.ConverseStreamOutputMemberMessageStop{}
	close(stream.events)

	var parts []string
	err := relayBedrockStream(stream, func(s string) error {
		parts = append(parts, s)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"CPT e ", "OPT"}, parts)
	assert.True(t, stream.closed)
}

func TestRelayBedrockStreamError(t *testing.T) {
	stream := &fakeEventStream{events: make(chan brtypes.ConverseStreamOutput), err: errors.New("reset")}
	close(stream.events)

	err := relayBedrockStream(stream, func(string) error { return nil })
	assert.ErrorContains(t, err, "reset")
}

type fakeConverseAPI struct {
	err   error
	input *bedrockruntime.ConverseStreamInput
}

func (f *fakeConverseAPI) ConverseStream(_ context.Context, in *bedrockruntime.ConverseStreamInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	f.input = in
	return nil, f.err
}

func TestBedrockProviderMapsThrottling(t *testing.T) {
	api := &fakeConverseAPI{err: &brtypes.ThrottlingException{Message: aws.String("slow down")}}
	p, err := NewBedrockProvider(api, "anthropic.model")
	require.NoError(t, err)

	_, err = p.Open(context.Background(), NewCompletionRequest("", []Message{
		{Role: RoleUser, Content: "oi"},
		{Role: RoleAssistant, Content: "olá"},
		{Role: RoleUser, Content: "e o OPT?"},
	}))

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)

	require.NotNil(t, api.input)
	assert.Equal(t, "anthropic.model", aws.ToString(api.input.ModelId))
	require.Len(t, api.input.System, 1)
	require.Len(t, api.input.Messages, 3)
	assert.Equal(t, brtypes.ConversationRoleAssistant, api.input.Messages[1].Role)
}

func TestBedrockProviderOtherErrors(t *testing.T) {
	p, err := NewBedrockProvider(&fakeConverseAPI{err: errors.New("boom")}, "m")
	require.NoError(t, err)

	_, err = p.Open(context.Background(), NewCompletionRequest("", []Message{{Role: RoleUser, Content: "oi"}}))
	var upstream *UpstreamError
	assert.False(t, errors.As(err, &upstream))
	assert.ErrorContains(t, err, "boom")

	_, err = NewBedrockProvider(nil, "m")
	assert.Error(t, err)
}

func TestGeminiHistory(t *testing.T) {
	history, last, err := geminiHistory([]Message{
		{Role: RoleUser, Content: "oi"},
		{Role: RoleAssistant, Content: "olá"},
		{Role: RoleUser, Content: "bolsas?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bolsas?", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)

	_, _, err = geminiHistory([]Message{{Role: RoleAssistant, Content: "olá"}})
	assert.Error(t, err)
}

func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("Estudar "), genai.Text("nos EUA")}},
	}}}
	assert.Equal(t, "Estudar nos EUA", geminiText(resp))
	assert.Empty(t, geminiText(&genai.GenerateContentResponse{}))
	assert.Empty(t, geminiText(nil))
}

func TestGeminiError(t *testing.T) {
	var upstream *UpstreamError
	require.ErrorAs(t, geminiError(&googleapi.Error{Code: 429, Message: "quota"}), &upstream)
	assert.Equal(t, 429, upstream.Status)

	err := geminiError(errors.New("network"))
	assert.False(t, errors.As(err, &upstream))
	assert.True(t, strings.HasPrefix(err.Error(), "chatrelay: gemini request"))
}
