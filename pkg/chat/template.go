package chat

import (
	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/chats/history"
	"github.com/germanamz/parley/pkg/operator"
	"github.com/germanamz/parley/pkg/prompt"
)

// Definition declares a reusable chat blueprint: everything known at
// declaration time. Zero fields are simply absent and can be supplied at
// Build time.
type Definition struct {
	Name       string                 // Label used by logs and registries.
	Client     backend.Client         // Default backend client.
	Model      string                 // Model identifier.
	System     string                 // System prompt template; may contain {tags}.
	Greeting   string                 // Assistant greeting for fresh conversations.
	Params     backend.Params         // Declaration-time default sampling params.
	Middleware []Middleware           // Default middleware chain.
	History    func() history.History // Factory for fresh histories; nil means in-memory.
}

// Template is a validated Definition ready to stamp out conversations.
type Template[T any] struct {
	def Definition
}

// NewTemplate validates def and prepares it for Build. The system prompt
// template is parsed here so a malformed declaration fails at declaration
// time, not on first use.
func NewTemplate[T any](def Definition) (*Template[T], error) {
	if def.System != "" {
		if _, err := prompt.New(def.System); err != nil {
			return nil, err
		}
	}

	return &Template[T]{def: def}, nil
}

// Definition returns the template's declaration.
func (t *Template[T]) Definition() Definition { return t.def }

// Build stamps out a Conversation with instantiation-time overrides applied.
// A Build option wins over the definition's default; the definition value is
// used only when Build supplies nothing.
func (t *Template[T]) Build(opts ...BuildOption) (*Conversation[T], error) {
	var b buildSettings
	for _, opt := range opts {
		opt.applyBuild(&b)
	}

	def := t.def

	client := def.Client
	if b.client != nil {
		client = b.client
	}

	model := def.Model
	if b.model != nil {
		model = *b.model
	}

	system := def.System
	if b.system != nil {
		system = *b.system
	}

	op, err := operator.New[T](operator.Config{
		Client:   client,
		Model:    model,
		System:   system,
		Greeting: def.Greeting,
		Params:   def.Params,
	})
	if err != nil {
		return nil, err
	}

	h := b.history
	if h == nil && def.History != nil {
		h = def.History()
	}

	mw := def.Middleware
	if b.midSet {
		mw = b.middleware
	}

	return New(op, Options{
		History:    h,
		Middleware: mw,
		Params:     b.params,
		Greeting:   b.greeting,
	})
}
