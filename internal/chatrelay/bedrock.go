package chatrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseStreamAPI interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// bedrockEventStream is the subset of the ConverseStream event stream we read.
type bedrockEventStream interface {
	Events() <-chan brtypes.ConverseStreamOutput
	Err() error
	Close() error
}

// BedrockProvider streams completions from Amazon Bedrock's ConverseStream
// API and re-frames them as OpenAI-style SSE chunks.
type BedrockProvider struct {
	api     bedrockConverseStreamAPI
	modelID string
}

// NewBedrockProvider wraps a Bedrock runtime client.
func NewBedrockProvider(api bedrockConverseStreamAPI, modelID string) (*BedrockProvider, error) {
	if api == nil {
		return nil, errors.New("chatrelay: bedrock client is required")
	}
	if modelID == "" {
		return nil, errors.New("chatrelay: bedrock model id is required")
	}
	return &BedrockProvider{api: api, modelID: modelID}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Open(ctx context.Context, req CompletionRequest) (io.ReadCloser, error) {
	out, err := p.api.ConverseStream(ctx, bedrockInput(p.modelID, req))
	if err != nil {
		return nil, bedrockError(err)
	}
	stream := out.GetStream()
	if stream == nil {
		return nil, errors.New("chatrelay: bedrock stream is nil")
	}
	return pipeFrames(func(emit emitFunc) error {
		return relayBedrockStream(stream, emit)
	}), nil
}

func bedrockInput(modelID string, req CompletionRequest) *bedrockruntime.ConverseStreamInput {
	var system []brtypes.SystemContentBlock
	if sys := req.System(); sys != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: sys})
	}
	turns := req.Turns()
	messages := make([]brtypes.Message, 0, len(turns))
	for _, m := range turns {
		role := brtypes.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		messages = append(messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(modelID),
		System:   system,
		Messages: messages,
	}
}

func relayBedrockStream(stream bedrockEventStream, emit emitFunc) error {
	defer stream.Close()
	for event := range stream.Events() {
		v, ok := event.(*brtypes.ConverseStreamOutputMemberContentBlockDelta)
		if !ok {
			continue
		}
		if text, ok := v.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok {
			if err := emit(text.Value); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("chatrelay: bedrock stream: %w", err)
	}
	return nil
}

func bedrockError(err error) error {
	var throttled *brtypes.ThrottlingException
	if errors.As(err, &throttled) {
		return &UpstreamError{Status: http.StatusTooManyRequests, Body: throttled.ErrorMessage()}
	}
	var quota *brtypes.ServiceQuotaExceededException
	if errors.As(err, &quota) {
		return &UpstreamError{Status: http.StatusPaymentRequired, Body: quota.ErrorMessage()}
	}
	return fmt.Errorf("chatrelay: bedrock request: %w", err)
}
