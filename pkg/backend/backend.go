package backend

import (
	"context"

	"github.com/germanamz/parley/pkg/backend/usage"
	"github.com/germanamz/parley/pkg/chats/message"
)

// Request is a provider-agnostic chat completion request. Messages carry the
// full conversation including any system message at the head.
type Request struct {
	Model    string
	Messages []message.Message
	Params   Params
}

// Response is a provider-agnostic chat completion response.
type Response struct {
	Text     string            // Assistant reply text.
	Model    string            // Model that produced the reply, as reported by the provider.
	Usage    usage.TokenCount  // Token usage for this call.
	Metadata map[string]string // Provider extras (finish reason, response ID, ...).
}

// Client sends a chat completion request to an LLM provider and returns the
// assistant's reply.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
