// Package chats provides a provider-agnostic data model for LLM chat interactions.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/parley/pkg/chats/role] — conversation roles (system, user, assistant)
//   - [github.com/germanamz/parley/pkg/chats/message] — a single exchanged message (role plus text)
//   - [github.com/germanamz/parley/pkg/chats/history] — append-only message stores (in-memory, JSON file, SQLite)
//
// No provider or API code is included — chats is a foundation layer
// that backends and conversations build on.
package chats
