// Package engine assembles backends and chats from a YAML configuration.
//
// The engine is the composition root used by the CLI: it builds one
// backend.Client per configured backend (wrapped with retrying when
// configured), compiles a chat template per configured chat, and hands out
// conversations on demand. Frontends talk to chat.Conversation directly;
// the engine only does the wiring.
//
// Backend kinds are extensible: RegisterBackend installs a factory for a
// custom kind before New is called.
package engine
