// Package task runs single-shot typed prompts.
//
// A Task renders a prompt template, dispatches it, and parses the reply into
// the declared type T. Unlike a chat Conversation it keeps no history: every
// Run is independent.
package task

import (
	"context"
	"errors"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/chats/message"
	"github.com/germanamz/parley/pkg/operator"
	"github.com/germanamz/parley/pkg/prompt"
)

// Definition declares a reusable single-shot task.
type Definition struct {
	Client backend.Client // Required.
	Model  string         // Model identifier.
	System string         // Optional system prompt template.
	Prompt string         // User prompt template; required, may contain {tags}.
	Params backend.Params // Default sampling parameters.
}

// Task is a validated definition ready to run.
type Task[T any] struct {
	op   *operator.Operator[T]
	user *prompt.Template
}

// New builds a Task, failing fast on a missing client or prompt and on
// malformed templates.
func New[T any](def Definition) (*Task[T], error) {
	if def.Prompt == "" {
		return nil, errors.New("task: prompt is required")
	}

	user, err := prompt.New(def.Prompt)
	if err != nil {
		return nil, err
	}

	op, err := operator.New[T](operator.Config{
		Client: def.Client,
		Model:  def.Model,
		System: def.System,
		Params: def.Params,
	})
	if err != nil {
		return nil, err
	}

	return &Task[T]{op: op, user: user}, nil
}

// Keys returns the distinct variables of the user prompt template, in order
// of first appearance.
func (t *Task[T]) Keys() []string {
	return t.user.Keys()
}

// Run executes the task with vars filled into both prompt templates.
func (t *Task[T]) Run(ctx context.Context, vars map[string]string) (T, error) {
	return t.RunWith(ctx, vars, backend.Params{})
}

// RunWith is Run with per-call sampling parameters overlaying the task's
// defaults.
func (t *Task[T]) RunWith(ctx context.Context, vars map[string]string, params backend.Params) (T, error) {
	var zero T

	text, err := t.user.Render(vars)
	if err != nil {
		return zero, err
	}

	msgs, err := t.op.Compile([]message.Message{message.User(text)}, vars)
	if err != nil {
		return zero, err
	}

	resp, err := t.op.Predict(ctx, msgs, params)
	if err != nil {
		return zero, err
	}

	return t.op.Parse(resp.Text)
}
