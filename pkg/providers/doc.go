// Package providers groups backend.Client implementations for concrete
// LLM APIs. Each subpackage adapts one provider:
//
//   - openai: OpenAI Chat Completions API (raw HTTP)
//   - anthropic: Anthropic Messages API (raw HTTP)
//   - gemini: Google Gemini via the official genai SDK
//   - azure: Azure OpenAI deployments via the official azopenai SDK
//   - openrouter: OpenRouter via the openai-go SDK
//
// All adapters accept backend.Request and return backend.Response, so they
// can be wrapped by backend.NewRetrying and used interchangeably by chats
// and tasks.
package providers
