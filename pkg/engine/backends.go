package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/providers/anthropic"
	"github.com/germanamz/parley/pkg/providers/azure"
	"github.com/germanamz/parley/pkg/providers/gemini"
	"github.com/germanamz/parley/pkg/providers/openai"
	"github.com/germanamz/parley/pkg/providers/openrouter"
)

// BackendFactory creates a backend.Client from a BackendConfig.
type BackendFactory func(ctx context.Context, cfg BackendConfig) (backend.Client, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]BackendFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories["openai"] = newOpenAI
		factories["anthropic"] = newAnthropic
		factories["gemini"] = newGemini
		factories["azure"] = newAzure
		factories["openrouter"] = newOpenRouter
	})
}

// RegisterBackend registers a custom backend factory under the given kind.
// It can be called before New to extend the engine with additional backends.
func RegisterBackend(kind string, factory BackendFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given kind.
func getFactory(kind string) (BackendFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]

	return f, ok
}

func newOpenAI(_ context.Context, cfg BackendConfig) (backend.Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	return openai.New(baseURL, cfg.APIKey, cfg.Model), nil
}

func newAnthropic(_ context.Context, cfg BackendConfig) (backend.Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return anthropic.New(baseURL, cfg.APIKey, cfg.Model), nil
}

func newGemini(ctx context.Context, cfg BackendConfig) (backend.Client, error) {
	return gemini.New(ctx, cfg.APIKey, cfg.Model)
}

func newAzure(_ context.Context, cfg BackendConfig) (backend.Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("engine: azure backend requires base_url to be the resource endpoint")
	}

	deployment := cfg.Deployment
	if deployment == "" {
		deployment = cfg.Model
	}

	return azure.New(cfg.BaseURL, cfg.APIKey, deployment)
}

func newOpenRouter(_ context.Context, cfg BackendConfig) (backend.Client, error) {
	return openrouter.New(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
}

// buildClient creates a backend.Client from a BackendConfig using the
// registered factory for its Kind. If retrying is configured, the client is
// wrapped with a backend.Retrying.
func buildClient(ctx context.Context, cfg BackendConfig) (backend.Client, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: unknown backend kind %q", cfg.Kind)
	}

	c, err := factory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r := cfg.Retry
	if r.RPM > 0 || r.MaxRetries > 0 || r.BaseDelay != "" {
		var baseDelay time.Duration
		if r.BaseDelay != "" {
			var parseErr error
			baseDelay, parseErr = time.ParseDuration(r.BaseDelay)
			if parseErr != nil {
				return nil, fmt.Errorf("engine: backend %q: invalid base_delay %q: %w", cfg.Name, r.BaseDelay, parseErr)
			}
		}

		c = backend.NewRetrying(c, backend.RetryOpts{
			RPM:        r.RPM,
			MaxRetries: r.MaxRetries,
			BaseDelay:  baseDelay,
		})
	}

	return c, nil
}
