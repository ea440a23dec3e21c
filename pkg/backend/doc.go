// Package backend defines the interface and types for LLM completion backends.
//
// It contains:
//   - [Client] interface and embeddable [Adapter] base struct with HTTP and WebSocket helpers, auth, and custom headers
//   - [Params] sampling parameters with unset/zero distinction and overlay merging
//   - [Retrying] wrapper adding RPM throttling and 429 retry with backoff
//   - [github.com/germanamz/parley/pkg/backend/usage] — thread-safe token usage tracker
//
// This package contains no provider-specific code — concrete adapters live in
// separate packages that import backend.
package backend
