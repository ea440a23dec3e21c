package chat_test

import (
	"context"
	"testing"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/chat"
	"github.com/germanamz/parley/pkg/chats/history"
	"github.com/germanamz/parley/pkg/chats/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTemplate_MalformedSystem(t *testing.T) {
	_, err := chat.NewTemplate[string](chat.Definition{
		Client: &sequenceClient{},
		System: "unclosed {tag",
	})
	assert.Error(t, err)
}

func TestBuild_Defaults(t *testing.T) {
	client := &sequenceClient{replies: []string{"ok"}}
	tmpl, err := chat.NewTemplate[string](chat.Definition{
		Client:   client,
		Model:    "gpt-4o",
		System:   "You are helpful",
		Greeting: "Hello",
		Params:   backend.Params{Temperature: backend.Float64(0.2)},
	})
	require.NoError(t, err)

	c, err := tmpl.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello"}, contents(t, c))

	_, err = c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", client.lastReq.Model)
	assert.InDelta(t, 0.2, *client.lastReq.Params.Temperature, 1e-9)
}

func TestBuild_GreetingOverride(t *testing.T) {
	tmpl, err := chat.NewTemplate[string](chat.Definition{
		Client:   &sequenceClient{},
		Greeting: "Hello",
	})
	require.NoError(t, err)

	// Declaration-time default.
	c1, err := tmpl.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello"}, contents(t, c1))

	// Instantiation-time override wins.
	c2, err := tmpl.Build(chat.WithGreeting("Hey"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hey"}, contents(t, c2))

	// Explicit empty disables the greeting.
	c3, err := tmpl.Build(chat.WithGreeting(""))
	require.NoError(t, err)
	assert.Empty(t, contents(t, c3))

	// The template itself is unchanged.
	c4, err := tmpl.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello"}, contents(t, c4))
}

func TestBuild_SystemOverride(t *testing.T) {
	client := &sequenceClient{replies: []string{"ok"}}
	tmpl, err := chat.NewTemplate[string](chat.Definition{
		Client: client,
		System: "You are concise.",
	})
	require.NoError(t, err)

	c, err := tmpl.Build(chat.WithSystem("You are verbose."))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "You are verbose.", client.lastReq.Messages[0].Content)
}

func TestBuild_ModelOverride(t *testing.T) {
	client := &sequenceClient{replies: []string{"ok"}}
	tmpl, err := chat.NewTemplate[string](chat.Definition{
		Client: client,
		Model:  "gpt-4o-mini",
	})
	require.NoError(t, err)

	c, err := tmpl.Build(chat.WithModel("gpt-4o"))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", client.lastReq.Model)
}

func TestBuild_RequiresClient(t *testing.T) {
	tmpl, err := chat.NewTemplate[string](chat.Definition{})
	require.NoError(t, err)

	_, err = tmpl.Build()
	assert.EqualError(t, err, "operator: client is required")

	_, err = tmpl.Build(chat.WithClient(&sequenceClient{}))
	assert.NoError(t, err)
}

func TestBuild_ClientOverride(t *testing.T) {
	defaultClient := &sequenceClient{replies: []string{"from default"}}
	buildClient := &sequenceClient{replies: []string{"from override"}}

	tmpl, err := chat.NewTemplate[string](chat.Definition{Client: defaultClient})
	require.NoError(t, err)

	c, err := tmpl.Build(chat.WithClient(buildClient))
	require.NoError(t, err)

	got, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "from override", got)
	assert.Equal(t, 0, defaultClient.calls)
}

func TestBuild_ParamsLayering(t *testing.T) {
	client := &sequenceClient{replies: []string{"ok"}}
	tmpl, err := chat.NewTemplate[string](chat.Definition{
		Client: client,
		Params: backend.Params{
			Temperature: backend.Float64(0.2),
			MaxTokens:   backend.Int(128),
		},
	})
	require.NoError(t, err)

	c, err := tmpl.Build(chat.WithParams(backend.Params{Temperature: backend.Float64(0.5)}))
	require.NoError(t, err)

	// Build-time params beat declaration-time; unset fields fall through.
	_, err = c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, *client.lastReq.Params.Temperature, 1e-9)
	assert.Equal(t, 128, *client.lastReq.Params.MaxTokens)

	// Send-time params beat both.
	_, err = c.Send(context.Background(), "hi",
		chat.WithParams(backend.Params{Temperature: backend.Float64(0.9)}))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, *client.lastReq.Params.Temperature, 1e-9)
}

func TestBuild_HistoryFactory(t *testing.T) {
	tmpl, err := chat.NewTemplate[string](chat.Definition{
		Client:   &sequenceClient{},
		Greeting: "Hello",
		History: func() history.History {
			return history.NewMemory(message.User("restored"))
		},
	})
	require.NoError(t, err)

	// The factory's history is non-empty, so no greeting is injected.
	c, err := tmpl.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"restored"}, contents(t, c))
}

func TestBuild_WithHistory(t *testing.T) {
	tmpl, err := chat.NewTemplate[string](chat.Definition{
		Client:   &sequenceClient{},
		Greeting: "Hello",
		History:  func() history.History { return history.NewMemory(message.User("from factory")) },
	})
	require.NoError(t, err)

	h := history.NewMemory()
	c, err := tmpl.Build(chat.WithHistory(h))
	require.NoError(t, err)

	// The explicit store wins over the factory; it was empty, so it greets.
	assert.Equal(t, []string{"Hello"}, contents(t, c))
	assert.Same(t, h, c.History())
}

func TestBuild_MiddlewareReplace(t *testing.T) {
	calls := 0
	counting := func(next chat.Runner) chat.Runner {
		return chat.RunnerFunc(func(ctx context.Context, inv *chat.Invocation) (backend.Response, error) {
			calls++
			return next.Run(ctx, inv)
		})
	}

	tmpl, err := chat.NewTemplate[string](chat.Definition{
		Client:     &sequenceClient{replies: []string{"ok"}},
		Middleware: []chat.Middleware{counting},
	})
	require.NoError(t, err)

	c1, err := tmpl.Build()
	require.NoError(t, err)
	_, err = c1.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// WithMiddleware() replaces the list, disabling the default chain.
	c2, err := tmpl.Build(chat.WithMiddleware())
	require.NoError(t, err)
	_, err = c2.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBuild_IndependentConversations(t *testing.T) {
	client := &sequenceClient{replies: []string{"ok"}}
	tmpl, err := chat.NewTemplate[string](chat.Definition{
		Client:   client,
		Greeting: "Hello",
	})
	require.NoError(t, err)

	c1, err := tmpl.Build()
	require.NoError(t, err)
	c2, err := tmpl.Build()
	require.NoError(t, err)

	_, err = c1.Send(context.Background(), "only in c1")
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", "only in c1", "ok"}, contents(t, c1))
	assert.Equal(t, []string{"Hello"}, contents(t, c2))
}
