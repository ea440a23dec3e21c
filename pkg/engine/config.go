package engine

import (
	"fmt"
	"os"

	"github.com/germanamz/parley/pkg/backend"
	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Backends    []BackendConfig `yaml:"backends"`
	Chats       []ChatConfig    `yaml:"chats"`
	DefaultChat string          `yaml:"default_chat"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// BackendConfig describes an LLM backend instance.
type BackendConfig struct {
	Name       string      `yaml:"name"`
	Kind       string      `yaml:"kind"`
	BaseURL    string      `yaml:"base_url"`
	APIKey     string      `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	Model      string      `yaml:"model"`
	Deployment string      `yaml:"deployment"`
	Retry      RetryConfig `yaml:"retry"`
}

// RetryConfig controls per-backend rate limiting and retries.
type RetryConfig struct {
	RPM        int    `yaml:"rpm"`         // Requests per minute (0 = no limit).
	MaxRetries int    `yaml:"max_retries"` // Max retries on 429 (default 3).
	BaseDelay  string `yaml:"base_delay"`  // Initial backoff delay as a duration string (e.g. "1s", "500ms").
}

// ChatConfig describes a named chat persona.
type ChatConfig struct {
	Name     string        `yaml:"name"`
	Backend  string        `yaml:"backend"`
	System   string        `yaml:"system"`
	Greeting string        `yaml:"greeting"`
	Params   *ParamsConfig `yaml:"params"`
	History  HistoryConfig `yaml:"history"`
}

// ParamsConfig holds sampling parameters. Fields are pointers so an explicit
// zero in the YAML is distinguishable from an absent key.
type ParamsConfig struct {
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	MaxTokens   *int     `yaml:"max_tokens"`
	Stop        []string `yaml:"stop"`
}

// HistoryConfig selects the history store for a chat.
type HistoryConfig struct {
	Kind           string `yaml:"kind"`            // "", "memory", "file" or "sqlite".
	Path           string `yaml:"path"`            // File or database path for persistent kinds.
	ConversationID string `yaml:"conversation_id"` // SQLite conversation to resume; empty starts a new one.
}

// LoggingConfig holds log destination settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// historyKinds are the recognised history store kinds.
var historyKinds = map[string]struct{}{
	"":       {},
	"memory": {},
	"file":   {},
	"sqlite": {},
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing. This allows API keys and other secrets to be kept in
// environment variables (e.g. loaded from a .env file) rather than committed
// in the config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("engine: config: at least one backend is required")
	}

	backendNames := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("engine: config: backend name is required")
		}
		if b.Kind == "" {
			return fmt.Errorf("engine: config: backend %q: kind is required", b.Name)
		}
		if _, dup := backendNames[b.Name]; dup {
			return fmt.Errorf("engine: config: duplicate backend name %q", b.Name)
		}
		backendNames[b.Name] = struct{}{}
	}

	if len(c.Chats) == 0 {
		return fmt.Errorf("engine: config: at least one chat is required")
	}

	chatNames := make(map[string]struct{}, len(c.Chats))
	for _, ch := range c.Chats {
		if ch.Name == "" {
			return fmt.Errorf("engine: config: chat name is required")
		}
		if _, dup := chatNames[ch.Name]; dup {
			return fmt.Errorf("engine: config: duplicate chat name %q", ch.Name)
		}
		chatNames[ch.Name] = struct{}{}

		if _, ok := backendNames[ch.Backend]; ch.Backend != "" && !ok {
			return fmt.Errorf("engine: config: chat %q: unknown backend %q", ch.Name, ch.Backend)
		}

		if _, ok := historyKinds[ch.History.Kind]; !ok {
			return fmt.Errorf("engine: config: chat %q: unknown history kind %q", ch.Name, ch.History.Kind)
		}
		if (ch.History.Kind == "file" || ch.History.Kind == "sqlite") && ch.History.Path == "" {
			return fmt.Errorf("engine: config: chat %q: history kind %q requires a path", ch.Name, ch.History.Kind)
		}
	}

	if c.DefaultChat != "" {
		if _, ok := chatNames[c.DefaultChat]; !ok {
			return fmt.Errorf("engine: config: default_chat %q not found in chats", c.DefaultChat)
		}
	}

	return nil
}

// toParams converts a ParamsConfig into backend params, preserving the
// set-versus-unset distinction.
func (p *ParamsConfig) toParams() backend.Params {
	if p == nil {
		return backend.Params{}
	}

	return backend.Params{
		Temperature: p.Temperature,
		TopP:        p.TopP,
		MaxTokens:   p.MaxTokens,
		Stop:        p.Stop,
	}
}
