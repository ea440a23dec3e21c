// Package azure provides a backend.Client implementation for Azure OpenAI
// deployments via the official azopenai SDK.
package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/chats/message"
	"github.com/germanamz/parley/pkg/chats/role"
)

var (
	ErrNoCompletions = errors.New("azure: no completions returned")
	ErrNoMessage     = errors.New("azure: no message included in completion")
)

// completionsClient is the slice of azopenai.Client used by the adapter,
// extracted so tests can substitute a stub.
type completionsClient interface {
	GetChatCompletions(ctx context.Context, body azopenai.ChatCompletionsOptions, options *azopenai.GetChatCompletionsOptions) (azopenai.GetChatCompletionsResponse, error)
}

var _ backend.Client = (*Adapter)(nil)

// Adapter implements backend.Client for Azure OpenAI.
type Adapter struct {
	client completionsClient

	// Deployment is the default deployment used when a request does not
	// name a model.
	Deployment string
}

// New creates an Adapter for an Azure OpenAI resource using API key auth.
// The endpoint looks like "https://<resource>.openai.azure.com".
func New(endpoint, apiKey, deployment string) (*Adapter, error) {
	client, err := azopenai.NewClientWithKeyCredential(endpoint, azcore.NewKeyCredential(apiKey), nil)
	if err != nil {
		return nil, fmt.Errorf("azure: create client: %w", err)
	}

	return &Adapter{client: client, Deployment: deployment}, nil
}

// Complete sends a conversation to an Azure OpenAI deployment and returns
// the assistant's reply. The request model, when set, selects the deployment.
func (a *Adapter) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	deployment := req.Model
	if deployment == "" {
		deployment = a.Deployment
	}

	opts := azopenai.ChatCompletionsOptions{
		Messages:       buildMessages(req.Messages),
		DeploymentName: &deployment,
		Stop:           req.Params.Stop,
	}

	if req.Params.Temperature != nil {
		opts.Temperature = to.Ptr(float32(*req.Params.Temperature))
	}
	if req.Params.TopP != nil {
		opts.TopP = to.Ptr(float32(*req.Params.TopP))
	}
	if req.Params.MaxTokens != nil {
		opts.MaxTokens = to.Ptr(int32(*req.Params.MaxTokens))
	}

	resp, err := a.client.GetChatCompletions(ctx, opts, nil)
	if err != nil {
		return backend.Response{}, fmt.Errorf("azure: %w", err)
	}

	if len(resp.Choices) == 0 {
		return backend.Response{}, ErrNoCompletions
	}

	choice := resp.Choices[0]
	if choice.Message == nil || choice.Message.Content == nil {
		return backend.Response{}, ErrNoMessage
	}

	out := backend.Response{
		Text:  *choice.Message.Content,
		Model: deployment,
	}

	if resp.Usage != nil {
		if resp.Usage.PromptTokens != nil {
			out.Usage.InputTokens = int(*resp.Usage.PromptTokens)
		}
		if resp.Usage.CompletionTokens != nil {
			out.Usage.OutputTokens = int(*resp.Usage.CompletionTokens)
		}
	}

	out.Metadata = map[string]string{}
	if resp.ID != nil {
		out.Metadata["id"] = *resp.ID
	}
	if choice.FinishReason != nil {
		out.Metadata["finish_reason"] = string(*choice.FinishReason)
	}

	return out, nil
}

func buildMessages(msgs []message.Message) []azopenai.ChatRequestMessageClassification {
	out := make([]azopenai.ChatRequestMessageClassification, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case role.System:
			out = append(out, &azopenai.ChatRequestSystemMessage{Content: to.Ptr(m.Content)})
		case role.Assistant:
			out = append(out, &azopenai.ChatRequestAssistantMessage{Content: to.Ptr(m.Content)})
		default:
			out = append(out, &azopenai.ChatRequestUserMessage{
				Content: azopenai.NewChatRequestUserMessageContent(m.Content),
			})
		}
	}

	return out
}
