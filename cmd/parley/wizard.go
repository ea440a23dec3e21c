package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"
)

type wizardBackend struct {
	Kind       string
	Name       string
	APIKey     string //nolint:gosec // env var reference, not a secret
	Model      string
	BaseURL    string
	Deployment string
	RPM        string
	MaxRetries string
	BaseDelay  string
}

type wizardChat struct {
	Name        string
	Backend     string
	System      string
	Greeting    string
	HistoryKind string
	HistoryPath string
}

type wizardConfig struct {
	Backends    []wizardBackend
	Chats       []wizardChat
	DefaultChat string
}

type backendDefault struct {
	APIKey string //nolint:gosec // env var reference template, not a secret
	Model  string
}

//nolint:gosec // env var reference templates, not hardcoded secrets
var backendDefaults = map[string]backendDefault{
	"openai":     {APIKey: "${OPENAI_API_KEY}", Model: "gpt-4o-mini"},
	"anthropic":  {APIKey: "${ANTHROPIC_API_KEY}", Model: "claude-sonnet-4-20250514"},
	"gemini":     {APIKey: "${GEMINI_API_KEY}", Model: "gemini-2.5-flash"},
	"azure":      {APIKey: "${AZURE_OPENAI_API_KEY}", Model: "gpt-4o"},
	"openrouter": {APIKey: "${OPENROUTER_API_KEY}", Model: "openai/gpt-4o-mini"},
}

// runWizard walks the user through backends and chats and returns the
// marshalled config YAML.
func runWizard() ([]byte, error) {
	var cfg wizardConfig

	if err := wizardBackends(&cfg); err != nil {
		return nil, err
	}

	if err := wizardChats(&cfg); err != nil {
		return nil, err
	}

	if err := wizardDefaultChat(&cfg); err != nil {
		return nil, err
	}

	return marshalWizardConfig(cfg)
}

func wizardBackends(cfg *wizardConfig) error {
	for {
		b, err := wizardPromptBackend()
		if err != nil {
			return err
		}

		cfg.Backends = append(cfg.Backends, b)

		var more bool
		if err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().Title("Add another backend?").Value(&more),
		)).Run(); err != nil {
			return err
		}

		if !more {
			return nil
		}
	}
}

func wizardPromptBackend() (wizardBackend, error) {
	var b wizardBackend

	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Backend kind").
			Options(
				huh.NewOption("OpenAI", "openai"),
				huh.NewOption("Anthropic", "anthropic"),
				huh.NewOption("Gemini", "gemini"),
				huh.NewOption("Azure OpenAI", "azure"),
				huh.NewOption("OpenRouter", "openrouter"),
			).
			Value(&b.Kind),
	)).Run(); err != nil {
		return b, err
	}

	defaults := backendDefaults[b.Kind]
	b.Name = b.Kind
	b.APIKey = defaults.APIKey
	b.Model = defaults.Model

	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Backend name").Value(&b.Name),
		huh.NewInput().Title("API key env var").Value(&b.APIKey),
		huh.NewInput().Title("Model").Value(&b.Model),
	)).Run(); err != nil {
		return b, err
	}

	if b.Kind == "azure" {
		b.Deployment = b.Model
		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Resource endpoint (https://<resource>.openai.azure.com)").Value(&b.BaseURL),
			huh.NewInput().Title("Deployment name").Value(&b.Deployment),
		)).Run(); err != nil {
			return b, err
		}
	}

	var configRL bool
	if err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title("Configure rate limiting?").Value(&configRL),
	)).Run(); err != nil {
		return b, err
	}

	if configRL {
		b.RPM = "0"
		b.MaxRetries = "3"
		b.BaseDelay = "1s"

		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Requests per minute (0 = no limit)").Value(&b.RPM).Validate(validateNonNegativeInt),
			huh.NewInput().Title("Max retries on 429").Value(&b.MaxRetries).Validate(validateNonNegativeInt),
			huh.NewInput().Title("Base backoff delay (e.g. 1s, 500ms)").Value(&b.BaseDelay).Validate(validateDuration),
		)).Run(); err != nil {
			return b, err
		}
	}

	return b, nil
}

func wizardChats(cfg *wizardConfig) error {
	backendNames := make([]string, len(cfg.Backends))
	for i, b := range cfg.Backends {
		backendNames[i] = b.Name
	}

	for {
		c, err := wizardPromptChat(backendNames)
		if err != nil {
			return err
		}

		cfg.Chats = append(cfg.Chats, c)

		var more bool
		if err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().Title("Add another chat?").Value(&more),
		)).Run(); err != nil {
			return err
		}

		if !more {
			return nil
		}
	}
}

func wizardPromptChat(backendNames []string) (wizardChat, error) {
	c := wizardChat{
		Name:     "assistant",
		System:   "You are a helpful assistant. Be concise and accurate.",
		Greeting: "Hi! How can I help?",
	}

	if len(backendNames) > 0 {
		c.Backend = backendNames[0]
	}

	opts := make([]huh.Option[string], len(backendNames))
	for i, n := range backendNames {
		opts[i] = huh.NewOption(n, n)
	}

	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Chat name").Value(&c.Name),
		huh.NewSelect[string]().Title("Backend").Options(opts...).Value(&c.Backend),
		huh.NewText().Title("System prompt").Value(&c.System),
		huh.NewInput().Title("Greeting (empty = none)").Value(&c.Greeting),
	)).Run(); err != nil {
		return c, err
	}

	var persist bool
	if err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title("Persist history to disk?").Value(&persist),
	)).Run(); err != nil {
		return c, err
	}

	if persist {
		if err := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("History store").
				Options(
					huh.NewOption("SQLite database", "sqlite"),
					huh.NewOption("JSON file", "file"),
				).
				Value(&c.HistoryKind),
		)).Run(); err != nil {
			return c, err
		}

		c.HistoryPath = c.Name + ".db"
		if c.HistoryKind == "file" {
			c.HistoryPath = c.Name + ".json"
		}

		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("History path").Value(&c.HistoryPath),
		)).Run(); err != nil {
			return c, err
		}
	}

	return c, nil
}

func wizardDefaultChat(cfg *wizardConfig) error {
	if len(cfg.Chats) == 1 {
		cfg.DefaultChat = cfg.Chats[0].Name
		return nil
	}

	opts := make([]huh.Option[string], len(cfg.Chats))
	for i, c := range cfg.Chats {
		opts[i] = huh.NewOption(c.Name, c.Name)
	}

	return huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Which chat should open by default?").
			Options(opts...).
			Value(&cfg.DefaultChat),
	)).Run()
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}

	return nil
}

func validateDuration(s string) error {
	if s == "" {
		return nil
	}

	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("must be a valid duration (e.g. 1s, 500ms)")
	}

	return nil
}

// YAML output types.

type configYAML struct {
	Backends    []backendYAML `yaml:"backends"`
	Chats       []chatYAML    `yaml:"chats"`
	DefaultChat string        `yaml:"default_chat,omitempty"`
}

type backendYAML struct {
	Name       string     `yaml:"name"`
	Kind       string     `yaml:"kind"`
	BaseURL    string     `yaml:"base_url,omitempty"`
	APIKey     string     `yaml:"api_key"` //nolint:gosec // env var reference, not a secret
	Model      string     `yaml:"model"`
	Deployment string     `yaml:"deployment,omitempty"`
	Retry      *retryYAML `yaml:"retry,omitempty"`
}

type retryYAML struct {
	RPM        int    `yaml:"rpm,omitempty"`
	MaxRetries int    `yaml:"max_retries,omitempty"`
	BaseDelay  string `yaml:"base_delay,omitempty"`
}

type chatYAML struct {
	Name     string       `yaml:"name"`
	Backend  string       `yaml:"backend,omitempty"`
	System   string       `yaml:"system,omitempty"`
	Greeting string       `yaml:"greeting,omitempty"`
	History  *historyYAML `yaml:"history,omitempty"`
}

type historyYAML struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

func marshalWizardConfig(cfg wizardConfig) ([]byte, error) {
	yc := configYAML{
		DefaultChat: cfg.DefaultChat,
	}

	for _, b := range cfg.Backends {
		by := backendYAML{
			Name:       b.Name,
			Kind:       b.Kind,
			BaseURL:    b.BaseURL,
			APIKey:     b.APIKey,
			Model:      b.Model,
			Deployment: b.Deployment,
		}

		rpm, _ := strconv.Atoi(b.RPM)
		maxRetries, _ := strconv.Atoi(b.MaxRetries)

		if rpm > 0 || maxRetries > 0 || b.BaseDelay != "" {
			by.Retry = &retryYAML{
				RPM:        rpm,
				MaxRetries: maxRetries,
				BaseDelay:  b.BaseDelay,
			}
		}

		yc.Backends = append(yc.Backends, by)
	}

	for _, c := range cfg.Chats {
		cy := chatYAML{
			Name:     c.Name,
			Backend:  c.Backend,
			System:   c.System,
			Greeting: c.Greeting,
		}

		if c.HistoryKind != "" {
			cy.History = &historyYAML{Kind: c.HistoryKind, Path: c.HistoryPath}
		}

		yc.Chats = append(yc.Chats, cy)
	}

	return yaml.Marshal(yc)
}
