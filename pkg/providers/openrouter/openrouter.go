// Package openrouter provides a backend.Client implementation for the
// OpenRouter API via the openai-go SDK, which OpenRouter is compatible with.
package openrouter

import (
	"context"
	"fmt"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/backend/usage"
	"github.com/germanamz/parley/pkg/chats/message"
	"github.com/germanamz/parley/pkg/chats/role"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultBaseURL is the public OpenRouter endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// completionsClient is the slice of the SDK's chat completion service used
// by the adapter, extracted so tests can substitute a stub.
type completionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

var _ backend.Client = (*Adapter)(nil)

// Adapter implements backend.Client for the OpenRouter API.
type Adapter struct {
	completions completionsClient

	// Model is the default model used when a request does not name one,
	// e.g. "openai/gpt-4o" or "anthropic/claude-sonnet-4.5".
	Model string
}

// New creates an Adapter configured for OpenRouter. An empty baseURL
// selects DefaultBaseURL.
func New(baseURL, apiKey, model string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)

	return &Adapter{completions: &client.Chat.Completions, Model: model}
}

// Complete sends a conversation to OpenRouter and returns the assistant's
// reply.
func (a *Adapter) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	params := a.buildParams(req)

	resp, err := a.completions.New(ctx, params)
	if err != nil {
		return backend.Response{}, fmt.Errorf("openrouter: %w", err)
	}

	if len(resp.Choices) == 0 {
		return backend.Response{}, fmt.Errorf("openrouter: empty choices in response")
	}

	choice := resp.Choices[0]

	return backend.Response{
		Text:  choice.Message.Content,
		Model: resp.Model,
		Usage: usage.TokenCount{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		Metadata: map[string]string{
			"id":            resp.ID,
			"finish_reason": choice.FinishReason,
		},
	}, nil
}

func (a *Adapter) buildParams(req backend.Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = a.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}

	for _, m := range req.Messages {
		params.Messages = append(params.Messages, toMessageParam(m))
	}

	if req.Params.Temperature != nil {
		params.Temperature = openai.Float(*req.Params.Temperature)
	}
	if req.Params.TopP != nil {
		params.TopP = openai.Float(*req.Params.TopP)
	}
	if req.Params.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.Params.MaxTokens))
	}
	if len(req.Params.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Params.Stop}
	}

	return params
}

func toMessageParam(m message.Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case role.System:
		return openai.SystemMessage(m.Content)
	case role.Assistant:
		return openai.AssistantMessage(m.Content)
	default:
		return openai.UserMessage(m.Content)
	}
}
