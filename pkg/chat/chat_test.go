package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/backend/usage"
	"github.com/germanamz/parley/pkg/chat"
	"github.com/germanamz/parley/pkg/chats/history"
	"github.com/germanamz/parley/pkg/chats/message"
	"github.com/germanamz/parley/pkg/chats/role"
	"github.com/germanamz/parley/pkg/operator"
	"github.com/germanamz/parley/pkg/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceClient replies with canned texts in order, recording each request.
type sequenceClient struct {
	replies []string
	calls   int
	lastReq backend.Request
}

func (s *sequenceClient) Complete(_ context.Context, req backend.Request) (backend.Response, error) {
	s.lastReq = req

	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++

	return backend.Response{
		Text:  s.replies[i],
		Model: req.Model,
		Usage: usage.TokenCount{InputTokens: 7, OutputTokens: 3},
	}, nil
}

// errorClient always fails.
type errorClient struct {
	err error
}

func (e *errorClient) Complete(_ context.Context, _ backend.Request) (backend.Response, error) {
	return backend.Response{}, e.err
}

func mustOp[T any](t *testing.T, cfg operator.Config) *operator.Operator[T] {
	t.Helper()

	op, err := operator.New[T](cfg)
	require.NoError(t, err)

	return op
}

func contents(t *testing.T, c interface {
	Messages() ([]message.Message, error)
},
) []string {
	t.Helper()

	msgs, err := c.Messages()
	require.NoError(t, err)

	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}

	return out
}

// --- construction and greeting ---

func TestNew_RequiresOperator(t *testing.T) {
	_, err := chat.New[string](nil, chat.Options{})
	assert.EqualError(t, err, "chat: operator is required")
}

func TestNew_GreetingInjected(t *testing.T) {
	op := mustOp[string](t, operator.Config{Client: &sequenceClient{}, Greeting: "Hi!"})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	msgs, err := c.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, role.Assistant, msgs[0].Role)
	assert.Equal(t, "Hi!", msgs[0].Content)
}

func TestNew_GreetingNotReinjected(t *testing.T) {
	op := mustOp[string](t, operator.Config{Client: &sequenceClient{}, Greeting: "Hi!"})

	h := history.NewMemory()

	_, err := chat.New(op, chat.Options{History: h})
	require.NoError(t, err)

	// Rebuilding over the same record must not greet again.
	c2, err := chat.New(op, chat.Options{History: h})
	require.NoError(t, err)

	msgs, err := c2.Messages()
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestNew_GreetingSkippedForRestoredHistory(t *testing.T) {
	op := mustOp[string](t, operator.Config{Client: &sequenceClient{}, Greeting: "Hi!"})

	h := history.NewMemory(
		message.User("earlier question"),
		message.Assistant("earlier answer"),
	)

	c, err := chat.New(op, chat.Options{History: h})
	require.NoError(t, err)

	msgs, err := c.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "earlier question", msgs[0].Content)
}

func TestNew_GreetingOverride(t *testing.T) {
	op := mustOp[string](t, operator.Config{Client: &sequenceClient{}, Greeting: "Hi!"})

	override := "Welcome back"
	c, err := chat.New(op, chat.Options{Greeting: &override})
	require.NoError(t, err)

	assert.Equal(t, []string{"Welcome back"}, contents(t, c))
}

func TestNew_GreetingDisabled(t *testing.T) {
	op := mustOp[string](t, operator.Config{Client: &sequenceClient{}, Greeting: "Hi!"})

	none := ""
	c, err := chat.New(op, chat.Options{Greeting: &none})
	require.NoError(t, err)

	assert.Empty(t, contents(t, c))
}

func TestNew_NoGreeting(t *testing.T) {
	op := mustOp[string](t, operator.Config{Client: &sequenceClient{}})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	assert.Empty(t, contents(t, c))
}

// --- Send ---

func TestSend_HelpfulAssistant(t *testing.T) {
	client := &sequenceClient{replies: []string{"4"}}
	op := mustOp[string](t, operator.Config{
		Client:   client,
		Model:    "gpt-4o",
		System:   "You are helpful",
		Greeting: "Hi!",
	})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	got, err := c.Send(context.Background(), "What's 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", got)

	// The record holds greeting, question, answer; the system prompt is not
	// part of it.
	assert.Equal(t, []string{"Hi!", "What's 2+2?", "4"}, contents(t, c))

	// The compiled request leads with the system message.
	sent := client.lastReq.Messages
	require.Len(t, sent, 3)
	assert.Equal(t, role.System, sent[0].Role)
	assert.Equal(t, "You are helpful", sent[0].Content)
	assert.Equal(t, "Hi!", sent[1].Content)
	assert.Equal(t, "What's 2+2?", sent[2].Content)
}

func TestSend_TwoPerCallInOrder(t *testing.T) {
	client := &sequenceClient{replies: []string{"one", "two", "three"}}
	op := mustOp[string](t, operator.Config{Client: client})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	for i, q := range []string{"first?", "second?", "third?"} {
		_, err := c.Send(context.Background(), q)
		require.NoError(t, err)

		msgs, err := c.Messages()
		require.NoError(t, err)
		require.Len(t, msgs, (i+1)*2)
	}

	assert.Equal(t,
		[]string{"first?", "one", "second?", "two", "third?", "three"},
		contents(t, c),
	)

	msgs, _ := c.Messages()
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, role.User, m.Role)
		} else {
			assert.Equal(t, role.Assistant, m.Role)
		}
	}
}

// --- parameter precedence ---

func TestSend_OperatorDefaultParams(t *testing.T) {
	client := &sequenceClient{replies: []string{"ok"}}
	op := mustOp[string](t, operator.Config{
		Client: client,
		Params: backend.Params{Temperature: backend.Float64(0.2)},
	})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "hello")
	require.NoError(t, err)

	require.NotNil(t, client.lastReq.Params.Temperature)
	assert.InDelta(t, 0.2, *client.lastReq.Params.Temperature, 1e-9)
}

func TestSend_CallParamsWin(t *testing.T) {
	client := &sequenceClient{replies: []string{"ok"}}
	op := mustOp[string](t, operator.Config{
		Client: client,
		Params: backend.Params{Temperature: backend.Float64(0.2)},
	})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "hello",
		chat.WithParams(backend.Params{Temperature: backend.Float64(0.9)}))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, *client.lastReq.Params.Temperature, 1e-9)

	// The override is per-call; the next call falls back to the default.
	_, err = c.Send(context.Background(), "again")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, *client.lastReq.Params.Temperature, 1e-9)
}

func TestSend_ConversationParamsLayer(t *testing.T) {
	client := &sequenceClient{replies: []string{"ok"}}
	op := mustOp[string](t, operator.Config{
		Client: client,
		Params: backend.Params{
			Temperature: backend.Float64(0.2),
			MaxTokens:   backend.Int(256),
		},
	})

	c, err := chat.New(op, chat.Options{
		Params: backend.Params{Temperature: backend.Float64(0.5)},
	})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "hello")
	require.NoError(t, err)

	// Conversation default beats the operator default; untouched fields fall
	// through.
	assert.InDelta(t, 0.5, *client.lastReq.Params.Temperature, 1e-9)
	assert.Equal(t, 256, *client.lastReq.Params.MaxTokens)

	_, err = c.Send(context.Background(), "hotter",
		chat.WithParams(backend.Params{Temperature: backend.Float64(0.9)}))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, *client.lastReq.Params.Temperature, 1e-9)
}

// --- failure semantics ---

func TestSend_BackendFailureKeepsUserMessage(t *testing.T) {
	inner := errors.New("503 from upstream")
	op := mustOp[string](t, operator.Config{Client: &errorClient{err: inner}})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "are you there?")
	require.Error(t, err)

	var be *operator.BackendError
	require.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, inner)

	// The user turn stays; no assistant message was recorded.
	assert.Equal(t, []string{"are you there?"}, contents(t, c))
}

type quiz struct {
	Question string `json:"question"`
	Answer   int    `json:"answer"`
}

func TestSend_ParseFailureKeepsBothMessages(t *testing.T) {
	client := &sequenceClient{replies: []string{"sorry, no JSON today"}}
	op := mustOp[quiz](t, operator.Config{Client: client})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "quiz me")
	require.Error(t, err)

	var pe *operator.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "sorry, no JSON today", pe.Raw)

	// Both turns stay in the record for audit.
	assert.Equal(t, []string{"quiz me", "sorry, no JSON today"}, contents(t, c))
}

func TestSend_StructuredRoundTrip(t *testing.T) {
	client := &sequenceClient{replies: []string{`{"question":"2+2?","answer":4}`}}
	op := mustOp[quiz](t, operator.Config{Client: client})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	got, err := c.Send(context.Background(), "quiz me")
	require.NoError(t, err)
	assert.Equal(t, quiz{Question: "2+2?", Answer: 4}, got)
}

func TestSend_MissingTemplateVarLeavesRecordUntouched(t *testing.T) {
	client := &sequenceClient{replies: []string{"ok"}}
	op := mustOp[string](t, operator.Config{
		Client: client,
		System: "Speak only {lang}.",
	})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "hello")
	require.Error(t, err)

	var missing *prompt.MissingKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "lang", missing.Key)

	// Nothing was dispatched and nothing was recorded.
	assert.Equal(t, 0, client.calls)
	assert.Empty(t, contents(t, c))
}

func TestSend_WithVar(t *testing.T) {
	client := &sequenceClient{replies: []string{"bonjour"}}
	op := mustOp[string](t, operator.Config{
		Client: client,
		System: "Speak only {lang}.",
	})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	got, err := c.Send(context.Background(), "hello", chat.WithVar("lang", "French"))
	require.NoError(t, err)
	assert.Equal(t, "bonjour", got)

	sent := client.lastReq.Messages
	require.NotEmpty(t, sent)
	assert.Equal(t, "Speak only French.", sent[0].Content)
}

func TestSend_WithVars(t *testing.T) {
	client := &sequenceClient{replies: []string{"ok"}}
	op := mustOp[string](t, operator.Config{
		Client: client,
		System: "You are {persona} speaking {lang}.",
	})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "hello",
		chat.WithVars(map[string]string{"persona": "a poet", "lang": "French"}))
	require.NoError(t, err)

	assert.Equal(t, "You are a poet speaking French.", client.lastReq.Messages[0].Content)
}

// --- accessors ---

func TestLastResponse(t *testing.T) {
	client := &sequenceClient{replies: []string{"first", "second"}}
	op := mustOp[string](t, operator.Config{Client: client, Model: "gpt-4o"})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	_, ok := c.LastResponse()
	assert.False(t, ok)

	_, err = c.Send(context.Background(), "one")
	require.NoError(t, err)

	resp, ok := c.LastResponse()
	require.True(t, ok)
	assert.Equal(t, "first", resp.Text)

	// Only the latest response is retained.
	_, err = c.Send(context.Background(), "two")
	require.NoError(t, err)

	resp, ok = c.LastResponse()
	require.True(t, ok)
	assert.Equal(t, "second", resp.Text)
}

func TestUsageAccumulates(t *testing.T) {
	client := &sequenceClient{replies: []string{"a", "b"}}
	op := mustOp[string](t, operator.Config{Client: client})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "one")
	require.NoError(t, err)
	_, err = c.Send(context.Background(), "two")
	require.NoError(t, err)

	assert.Equal(t, 2, c.Usage().Count())
	total := c.Usage().Total()
	assert.Equal(t, 14, total.InputTokens)
	assert.Equal(t, 6, total.OutputTokens)
}

func TestAddMessage(t *testing.T) {
	client := &sequenceClient{}
	op := mustOp[string](t, operator.Config{Client: client})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	require.NoError(t, c.AddMessage("context for later", role.User))

	assert.Equal(t, []string{"context for later"}, contents(t, c))
	assert.Equal(t, 0, client.calls)
}

func TestInvoke_CallerMessages(t *testing.T) {
	client := &sequenceClient{replies: []string{"saluton"}}
	op := mustOp[string](t, operator.Config{Client: client})

	c, err := chat.New(op, chat.Options{})
	require.NoError(t, err)

	msgs := []message.Message{message.User("translate hi to Esperanto")}
	got, err := c.Invoke(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "saluton", got)

	// Invoke dispatches the caller's messages and records only the reply.
	assert.Equal(t, "translate hi to Esperanto", client.lastReq.Messages[0].Content)
	assert.Equal(t, []string{"saluton"}, contents(t, c))
}

func TestSend_AppendsToPersistentHistory(t *testing.T) {
	client := &sequenceClient{replies: []string{"pong"}}
	op := mustOp[string](t, operator.Config{Client: client, Greeting: "Hi!"})

	h := history.NewMemory()
	c, err := chat.New(op, chat.Options{History: h})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "ping")
	require.NoError(t, err)

	// The injected store carries the full record.
	n, err := h.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Same(t, h, c.History())
}
