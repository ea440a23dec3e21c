// Package gemini provides a backend.Client implementation for the Google
// Gemini API via the official genai SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/backend/usage"
	"github.com/germanamz/parley/pkg/chats/role"
	"google.golang.org/genai"
)

// modelsClient is the slice of genai.Client.Models used by the adapter,
// extracted so tests can substitute a stub.
type modelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var newClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
	return genai.NewClient(ctx, cfg)
}

var _ backend.Client = (*Adapter)(nil)

// Adapter implements backend.Client for the Gemini API.
type Adapter struct {
	models modelsClient

	// Model is the default model used when a request does not name one.
	Model string
}

// New creates an Adapter backed by the Gemini API.
func New(ctx context.Context, apiKey, model string) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	client, err := newClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Adapter{models: client.Models, Model: model}, nil
}

// Complete sends a conversation to the Gemini API and returns the model's
// reply.
func (a *Adapter) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	model := req.Model
	if model == "" {
		model = a.Model
	}

	contents, config := buildRequest(req)

	resp, err := a.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return backend.Response{}, fmt.Errorf("gemini: %w", err)
	}

	out := backend.Response{
		Text:  visibleText(resp),
		Model: model,
	}

	if resp.UsageMetadata != nil {
		out.Usage = usage.TokenCount{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	if len(resp.Candidates) > 0 {
		out.Metadata = map[string]string{
			"finish_reason": string(resp.Candidates[0].FinishReason),
		}
	}

	return out, nil
}

// buildRequest converts messages into genai contents, lifting system
// messages into the SystemInstruction config field.
func buildRequest(req backend.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	var (
		contents    []*genai.Content
		systemParts []string
	)

	for _, m := range req.Messages {
		switch m.Role {
		case role.System:
			if m.Content != "" {
				systemParts = append(systemParts, m.Content)
			}
		case role.Assistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	config := &genai.GenerateContentConfig{
		StopSequences: req.Params.Stop,
	}

	if len(systemParts) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}
	if req.Params.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Params.Temperature))
	}
	if req.Params.TopP != nil {
		config.TopP = genai.Ptr(float32(*req.Params.TopP))
	}
	if req.Params.MaxTokens != nil {
		config.MaxOutputTokens = int32(*req.Params.MaxTokens)
	}

	return contents, config
}

// visibleText concatenates the text parts of the first candidate, skipping
// thought parts emitted by thinking models.
func visibleText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}

	return sb.String()
}
