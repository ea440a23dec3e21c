// Package operator compiles prompts, dispatches them to a backend, and parses
// raw replies into typed values.
//
// An Operator[T] is bound to one declared return type T and one model. It is
// stateless with respect to conversation turns: it reads the messages it is
// given, never stores them, and never mutates a conversation's history.
package operator

import (
	"context"
	"errors"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/chats/message"
	"github.com/germanamz/parley/pkg/prompt"
)

// Config seeds an Operator.
type Config struct {
	Client   backend.Client // Required.
	Model    string         // Model identifier requests are sent with.
	System   string         // System prompt template; may contain {tags}. Empty means no system message.
	Greeting string         // Default assistant greeting; empty means none.
	Params   backend.Params // Default sampling parameters.
}

// Operator turns conversations into backend requests and replies into T.
type Operator[T any] struct {
	client   backend.Client
	model    string
	system   *prompt.Template // nil when no system text
	greeting string
	params   backend.Params
	parser   Parser[T]
}

// New builds an Operator. It fails fast on a nil client, a malformed system
// template, or a return type no parser can handle.
func New[T any](cfg Config) (*Operator[T], error) {
	if cfg.Client == nil {
		return nil, errors.New("operator: client is required")
	}

	var system *prompt.Template
	if cfg.System != "" {
		t, err := prompt.New(cfg.System)
		if err != nil {
			return nil, err
		}
		system = t
	}

	parser, err := parserFor[T]()
	if err != nil {
		return nil, err
	}

	return &Operator[T]{
		client:   cfg.Client,
		model:    cfg.Model,
		system:   system,
		greeting: cfg.Greeting,
		params:   cfg.Params,
		parser:   parser,
	}, nil
}

// Model returns the model identifier requests are sent with.
func (o *Operator[T]) Model() string { return o.model }

// Greeting returns the default assistant greeting, empty when none.
func (o *Operator[T]) Greeting() string { return o.greeting }

// System returns the raw system prompt template text.
func (o *Operator[T]) System() string {
	if o.system == nil {
		return ""
	}
	return o.system.Raw()
}

// Params returns the operator's default sampling parameters.
func (o *Operator[T]) Params() backend.Params { return o.params }

// Compile renders the system prompt with vars and prepends it to msgs. msgs
// is not modified. A system template tag with no value in vars fails with a
// *prompt.MissingKeyError before anything is dispatched.
func (o *Operator[T]) Compile(msgs []message.Message, vars map[string]string) ([]message.Message, error) {
	if o.system == nil {
		out := make([]message.Message, len(msgs))
		copy(out, msgs)
		return out, nil
	}

	rendered, err := o.system.Render(vars)
	if err != nil {
		return nil, err
	}

	out := make([]message.Message, 0, len(msgs)+1)
	out = append(out, message.System(rendered))
	out = append(out, msgs...)

	return out, nil
}

// Predict sends the compiled messages to the backend. Call params overlay the
// operator defaults; an explicitly set zero wins over a default. A client
// failure is returned as a *BackendError wrapping the original error.
func (o *Operator[T]) Predict(ctx context.Context, msgs []message.Message, params backend.Params) (backend.Response, error) {
	req := backend.Request{
		Model:    o.model,
		Messages: msgs,
		Params:   o.params.Merge(params),
	}

	resp, err := o.client.Complete(ctx, req)
	if err != nil {
		return backend.Response{}, &BackendError{Err: err}
	}

	return resp, nil
}

// Parse converts the raw reply text into T. A non-conforming reply fails with
// a *ParseError carrying the raw text.
func (o *Operator[T]) Parse(raw string) (T, error) {
	return o.parser.Parse(raw)
}
