package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/chat"
	"github.com/germanamz/parley/pkg/chats/history"
)

// Engine is the composition root that assembles backends and chat templates
// from configuration and exposes them through a frontend-agnostic API.
type Engine struct {
	cfg       Config
	clients   map[string]backend.Client
	templates map[string]*chat.Template[string]

	mu      sync.Mutex
	closers []io.Closer
}

// New creates an Engine from the given configuration. It validates the
// config, builds backend clients, and compiles a chat template per
// configured chat so prompt errors surface at startup.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		clients:   make(map[string]backend.Client, len(cfg.Backends)),
		templates: make(map[string]*chat.Template[string], len(cfg.Chats)),
	}

	backendCfgs := make(map[string]BackendConfig, len(cfg.Backends))
	for _, bc := range cfg.Backends {
		c, err := buildClient(ctx, bc)
		if err != nil {
			return nil, fmt.Errorf("engine: backend %q: %w", bc.Name, err)
		}
		e.clients[bc.Name] = c
		backendCfgs[bc.Name] = bc
	}

	for _, cc := range cfg.Chats {
		backendName := cc.Backend
		if backendName == "" {
			backendName = cfg.Backends[0].Name
		}

		tmpl, err := chat.NewTemplate[string](chat.Definition{
			Name:       cc.Name,
			Client:     e.clients[backendName],
			Model:      backendCfgs[backendName].Model,
			System:     cc.System,
			Greeting:   cc.Greeting,
			Params:     cc.Params.toParams(),
			Middleware: []chat.Middleware{chat.Logger(slog.Default(), cc.Name)},
		})
		if err != nil {
			return nil, fmt.Errorf("engine: chat %q: %w", cc.Name, err)
		}
		e.templates[cc.Name] = tmpl
	}

	return e, nil
}

// Chats returns the configured chat names in sorted order.
func (e *Engine) Chats() []string {
	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// DefaultChat returns the chat used when no name is given: the configured
// default_chat, or the first chat in the config.
func (e *Engine) DefaultChat() string {
	if e.cfg.DefaultChat != "" {
		return e.cfg.DefaultChat
	}

	return e.cfg.Chats[0].Name
}

// Backend returns a configured backend client by name.
func (e *Engine) Backend(name string) (backend.Client, bool) {
	c, ok := e.clients[name]

	return c, ok
}

// NewConversation builds a conversation from the named chat template. An
// empty name selects DefaultChat. The chat's configured history store is
// opened and attached; callers can still override it (or anything else)
// with build options.
func (e *Engine) NewConversation(name string, opts ...chat.BuildOption) (*chat.Conversation[string], error) {
	if name == "" {
		name = e.DefaultChat()
	}

	tmpl, ok := e.templates[name]
	if !ok {
		return nil, fmt.Errorf("engine: chat %q not found", name)
	}

	h, err := e.openHistory(name)
	if err != nil {
		return nil, fmt.Errorf("engine: chat %q: %w", name, err)
	}

	var engineOpts []chat.BuildOption
	if h != nil {
		engineOpts = append(engineOpts, chat.WithHistory(h))
	}

	conv, err := tmpl.Build(append(engineOpts, opts...)...)
	if err != nil {
		if closer, ok := h.(io.Closer); ok {
			_ = closer.Close()
		}

		return nil, fmt.Errorf("engine: chat %q: %w", name, err)
	}

	if closer, ok := h.(io.Closer); ok {
		e.mu.Lock()
		e.closers = append(e.closers, closer)
		e.mu.Unlock()
	}

	return conv, nil
}

// Close releases resources held by conversations built from this engine,
// such as open history databases.
func (e *Engine) Close() error {
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()

	var firstErr error
	for _, c := range closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// openHistory opens the history store configured for the named chat.
// A nil return means the chat uses the default in-memory store.
func (e *Engine) openHistory(name string) (history.History, error) {
	var hc HistoryConfig
	for _, cc := range e.cfg.Chats {
		if cc.Name == name {
			hc = cc.History

			break
		}
	}

	switch hc.Kind {
	case "file":
		return history.OpenFile(hc.Path)
	case "sqlite":
		return history.OpenSQLite(hc.Path, hc.ConversationID)
	default:
		return nil, nil
	}
}
