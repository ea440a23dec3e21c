// Package anthropic provides a backend.Client implementation for the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/backend/usage"
	"github.com/germanamz/parley/pkg/chats/role"
)

const messagesPath = "/v1/messages"

// The Messages API rejects requests without max_tokens.
const defaultMaxTokens = 4096

var _ backend.Client = (*Adapter)(nil)

// Adapter implements backend.Client for the Anthropic Messages API.
type Adapter struct {
	backend.Adapter

	// Model is the default model used when a request does not name one.
	Model string
}

// New creates an Adapter configured for the Anthropic API.
// The baseURL should be "https://api.anthropic.com" (no trailing slash).
func New(baseURL, apiKey, model string) *Adapter {
	a := &Adapter{Model: model}
	a.BaseURL = baseURL
	a.Auth = backend.Auth{
		Key:    apiKey,
		Header: "x-api-key",
	}
	a.Headers = map[string]string{
		"anthropic-version": "2023-06-01",
	}
	a.HeaderParser = backend.ParseAnthropicRateLimitHeaders

	return a
}

// Complete sends a conversation to the Anthropic Messages API and returns
// the assistant's reply.
func (a *Adapter) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	apiReq := a.buildRequest(req)

	var resp apiResponse
	if err := a.PostJSON(ctx, messagesPath, apiReq, &resp); err != nil {
		return backend.Response{}, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return backend.Response{
		Text:  text.String(),
		Model: resp.Model,
		Usage: usage.TokenCount{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		Metadata: map[string]string{
			"id":          resp.ID,
			"stop_reason": resp.StopReason,
		},
	}, nil
}

// --- request types ---

type apiRequest struct {
	Model         string       `json:"model"`
	MaxTokens     int          `json:"max_tokens"`
	System        string       `json:"system,omitempty"`
	Messages      []apiMessage `json:"messages"`
	Temperature   *float64     `json:"temperature,omitempty"`
	TopP          *float64     `json:"top_p,omitempty"`
	StopSequences []string     `json:"stop_sequences,omitempty"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// --- response types ---

type apiResponse struct {
	ID         string       `json:"id"`
	Model      string       `json:"model"`
	Content    []apiContent `json:"content"`
	StopReason string       `json:"stop_reason"`
	Usage      apiUsage     `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(req backend.Request) apiRequest {
	apiReq := apiRequest{
		Model:         req.Model,
		MaxTokens:     defaultMaxTokens,
		Temperature:   req.Params.Temperature,
		TopP:          req.Params.TopP,
		StopSequences: req.Params.Stop,
	}

	if apiReq.Model == "" {
		apiReq.Model = a.Model
	}

	if req.Params.MaxTokens != nil {
		apiReq.MaxTokens = *req.Params.MaxTokens
	}

	for _, m := range req.Messages {
		// System prompts are a top-level field, not a message.
		if m.Role == role.System {
			if apiReq.System != "" {
				apiReq.System += "\n\n"
			}
			apiReq.System += m.Content

			continue
		}
		appendMessage(&apiReq.Messages, m.Role, m.Content)
	}

	return apiReq
}

// appendMessage merges into the last message when it has the same role,
// since the Messages API requires alternating user and assistant turns.
func appendMessage(msgs *[]apiMessage, r role.Role, text string) {
	block := apiContent{Type: "text", Text: text}
	msgRole := mapRole(r)

	if len(*msgs) > 0 && (*msgs)[len(*msgs)-1].Role == msgRole {
		last := &(*msgs)[len(*msgs)-1]
		last.Content = append(last.Content, block)

		return
	}

	*msgs = append(*msgs, apiMessage{
		Role:    msgRole,
		Content: []apiContent{block},
	})
}

func mapRole(r role.Role) string {
	if r == role.Assistant {
		return "assistant"
	}

	return "user"
}
