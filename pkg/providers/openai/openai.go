// Package openai provides a backend.Client implementation for the OpenAI
// Chat Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/backend/usage"
	"github.com/germanamz/parley/pkg/chats/role"
)

const completionsPath = "/v1/chat/completions"

var _ backend.Client = (*Adapter)(nil)

// Adapter implements backend.Client for the OpenAI Chat Completions API.
type Adapter struct {
	backend.Adapter

	// Model is the default model used when a request does not name one.
	Model string
}

// New creates an Adapter configured for the OpenAI API.
// The baseURL should be "https://api.openai.com" (no trailing slash).
func New(baseURL, apiKey, model string) *Adapter {
	a := &Adapter{Model: model}
	a.BaseURL = baseURL
	a.Auth = backend.Auth{Key: apiKey}
	a.HeaderParser = backend.ParseOpenAIRateLimitHeaders

	return a
}

// Complete sends a conversation to the OpenAI Chat Completions API and
// returns the assistant's reply.
func (a *Adapter) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	apiReq := a.buildRequest(req)

	var resp apiResponse
	if err := a.PostJSON(ctx, completionsPath, apiReq, &resp); err != nil {
		return backend.Response{}, fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 {
		return backend.Response{}, fmt.Errorf("openai: empty choices in response")
	}

	choice := resp.Choices[0]

	return backend.Response{
		Text:  choice.Message.Content,
		Model: resp.Model,
		Usage: usage.TokenCount{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Metadata: map[string]string{
			"id":            resp.ID,
			"finish_reason": choice.FinishReason,
		},
	}, nil
}

// --- request types ---

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Stop        []string     `json:"stop,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- response types ---

type apiResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Message      apiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(req backend.Request) apiRequest {
	apiReq := apiRequest{
		Model:       req.Model,
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
		Stop:        req.Params.Stop,
	}

	if apiReq.Model == "" {
		apiReq.Model = a.Model
	}

	if req.Params.MaxTokens != nil {
		apiReq.MaxTokens = *req.Params.MaxTokens
	}

	for _, m := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, apiMessage{
			Role:    mapRole(m.Role),
			Content: m.Content,
		})
	}

	return apiReq
}

func mapRole(r role.Role) string {
	switch r {
	case role.System:
		return "system"
	case role.Assistant:
		return "assistant"
	default:
		return "user"
	}
}
