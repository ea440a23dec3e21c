package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/backend/usage"
	"github.com/germanamz/parley/pkg/chats/history"
	"github.com/germanamz/parley/pkg/chats/message"
	"github.com/germanamz/parley/pkg/chats/role"
	"github.com/germanamz/parley/pkg/operator"
)

// Conversation is an ongoing exchange with a model, parameterized by the
// declared reply type T. It owns its history and mutates it on every
// successful turn.
//
// A Conversation is NOT safe for concurrent use: Send and Invoke mutate the
// history without locking. Use one Conversation per logical session, or
// serialize calls externally.
type Conversation[T any] struct {
	op         *operator.Operator[T]
	history    history.History
	middleware []Middleware
	params     backend.Params
	usage      usage.Tracker
	last       backend.Response
	hasLast    bool
}

// Options configures a Conversation beyond its operator.
type Options struct {
	History    history.History // Defaults to a fresh in-memory history.
	Middleware []Middleware    // Applied around every call, first is outermost.
	Params     backend.Params  // Conversation defaults, overlaying the operator's.
	Greeting   *string         // Overrides the operator's greeting; nil keeps it.
}

// New wires a Conversation. When a greeting is configured and the history is
// empty, exactly one assistant greeting message is appended. A history that
// already has messages (e.g. restored from disk) is never greeted again.
func New[T any](op *operator.Operator[T], opts Options) (*Conversation[T], error) {
	if op == nil {
		return nil, errors.New("chat: operator is required")
	}

	h := opts.History
	if h == nil {
		h = history.NewMemory()
	}

	greeting := op.Greeting()
	if opts.Greeting != nil {
		greeting = *opts.Greeting
	}

	if greeting != "" {
		n, err := h.Len()
		if err != nil {
			return nil, fmt.Errorf("chat: inspect history: %w", err)
		}
		if n == 0 {
			if err := h.Append(message.Assistant(greeting)); err != nil {
				return nil, fmt.Errorf("chat: append greeting: %w", err)
			}
		}
	}

	return &Conversation[T]{
		op:         op,
		history:    h,
		middleware: opts.Middleware,
		params:     opts.Params,
	}, nil
}

// AddMessage appends a message to the record without calling the model.
func (c *Conversation[T]) AddMessage(text string, r role.Role) error {
	return c.history.Append(message.New(r, text))
}

// Messages returns a copy of the conversation record. The system prompt is
// not part of the record; it is rendered fresh on every call.
func (c *Conversation[T]) Messages() ([]message.Message, error) {
	return c.history.Messages()
}

// History returns the underlying history store.
func (c *Conversation[T]) History() history.History { return c.history }

// LastResponse returns the raw backend response from the most recent call.
// The bool is false before the first successful call.
func (c *Conversation[T]) LastResponse() (backend.Response, bool) {
	return c.last, c.hasLast
}

// Usage returns the accumulated token usage across this conversation's calls.
func (c *Conversation[T]) Usage() *usage.Tracker { return &c.usage }

// Send appends text as a user message and runs one model exchange over the
// full record. This is the primary entry point.
func (c *Conversation[T]) Send(ctx context.Context, text string, opts ...SendOption) (T, error) {
	var zero T

	pending := message.User(text)

	msgs, err := c.history.Messages()
	if err != nil {
		return zero, fmt.Errorf("chat: read history: %w", err)
	}
	msgs = append(msgs, pending)

	return c.run(ctx, msgs, &pending, opts)
}

// Invoke runs one model exchange over msgs, which the caller assembles. The
// raw assistant reply is appended to the conversation's history before
// parsing, so a parse failure still leaves the reply in the record.
func (c *Conversation[T]) Invoke(ctx context.Context, msgs []message.Message, opts ...SendOption) (T, error) {
	return c.run(ctx, msgs, nil, opts)
}

func (c *Conversation[T]) run(ctx context.Context, msgs []message.Message, pending *message.Message, opts []SendOption) (T, error) {
	var zero T

	inv := &Invocation{
		Messages: msgs,
		Params:   c.params,
		Vars:     map[string]string{},
	}
	for _, opt := range opts {
		opt.applySend(inv)
	}

	exec := func(ctx context.Context, inv *Invocation) (backend.Response, error) {
		compiled, err := c.op.Compile(inv.Messages, inv.Vars)
		if err != nil {
			return backend.Response{}, err
		}

		// The pending user turn enters the record only once the prompt is
		// known to compile, so a missing template var leaves the record
		// untouched.
		if pending != nil {
			if err := c.history.Append(*pending); err != nil {
				return backend.Response{}, fmt.Errorf("chat: append user message: %w", err)
			}
		}

		resp, err := c.op.Predict(ctx, compiled, inv.Params)
		if err != nil {
			return backend.Response{}, err
		}

		c.last = resp
		c.hasLast = true
		c.usage.Add(resp.Usage)

		// Record the raw reply before any parsing. A reply that fails to
		// parse still shows up in the transcript.
		if err := c.history.Append(message.Assistant(resp.Text)); err != nil {
			return backend.Response{}, fmt.Errorf("chat: append assistant message: %w", err)
		}

		return resp, nil
	}

	var runner Runner = RunnerFunc(exec)

	// Apply middleware in reverse order so the first middleware is outermost.
	for i := len(c.middleware) - 1; i >= 0; i-- {
		runner = c.middleware[i](runner)
	}

	resp, err := runner.Run(ctx, inv)
	if err != nil {
		return zero, err
	}

	return c.op.Parse(resp.Text)
}
