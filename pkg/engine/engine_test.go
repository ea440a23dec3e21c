package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/chat"
	"github.com/germanamz/parley/pkg/chats/history"
	"github.com/germanamz/parley/pkg/chats/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registerStub installs a backend factory whose clients replay the given
// replies, and returns the last client it created.
func registerStub(t *testing.T, kind string, replies ...string) *scriptedClient {
	t.Helper()

	stub := &scriptedClient{replies: replies}
	RegisterBackend(kind, func(_ context.Context, _ BackendConfig) (backend.Client, error) {
		return stub, nil
	})

	return stub
}

func testConfig(kind string) Config {
	return Config{
		Backends: []BackendConfig{
			{Name: "main", Kind: kind, APIKey: "sk-test", Model: "test-model"},
		},
		Chats: []ChatConfig{
			{
				Name:     "support",
				Backend:  "main",
				System:   "You are a support assistant.",
				Greeting: "Hello! How can I help?",
			},
			{
				Name:    "plain",
				Backend: "main",
			},
		},
		DefaultChat: "support",
	}
}

func TestNew_ValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one backend")
}

func TestNew_UnknownBackendKind(t *testing.T) {
	cfg := Config{
		Backends: []BackendConfig{{Name: "b1", Kind: "mystery"}},
		Chats:    []ChatConfig{{Name: "c1"}},
	}

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend kind")
}

func TestNew_MalformedSystemPrompt(t *testing.T) {
	registerStub(t, "test-eng-malformed")

	cfg := testConfig("test-eng-malformed")
	cfg.Chats[0].System = "unclosed {tag"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `chat "support"`)
}

func TestEngine_Chats(t *testing.T) {
	registerStub(t, "test-eng-chats")

	e, err := New(context.Background(), testConfig("test-eng-chats"))
	require.NoError(t, err)

	assert.Equal(t, []string{"plain", "support"}, e.Chats())
	assert.Equal(t, "support", e.DefaultChat())
}

func TestEngine_DefaultChatFallsBackToFirst(t *testing.T) {
	registerStub(t, "test-eng-first")

	cfg := testConfig("test-eng-first")
	cfg.DefaultChat = ""

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "support", e.DefaultChat())
}

func TestEngine_Backend(t *testing.T) {
	stub := registerStub(t, "test-eng-backend")

	e, err := New(context.Background(), testConfig("test-eng-backend"))
	require.NoError(t, err)

	c, ok := e.Backend("main")
	require.True(t, ok)
	assert.Same(t, stub, c)

	_, ok = e.Backend("nope")
	assert.False(t, ok)
}

func TestNewConversation_GreetingAndSend(t *testing.T) {
	stub := registerStub(t, "test-eng-send", "Sure, let me check.")

	e, err := New(context.Background(), testConfig("test-eng-send"))
	require.NoError(t, err)

	conv, err := e.NewConversation("support")
	require.NoError(t, err)

	msgs, err := conv.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, role.Assistant, msgs[0].Role)
	assert.Equal(t, "Hello! How can I help?", msgs[0].Content)

	reply, err := conv.Send(context.Background(), "Where is my order?")
	require.NoError(t, err)
	assert.Equal(t, "Sure, let me check.", reply)

	// The compiled request carries system, greeting and the user turn,
	// addressed to the backend's configured model.
	sent := stub.lastMessages()
	require.Len(t, sent, 3)
	assert.Equal(t, role.System, sent[0].Role)
	assert.Equal(t, "You are a support assistant.", sent[0].Content)
	assert.Equal(t, "test-model", stub.requests()[0].Model)
}

func TestNewConversation_EmptyNameUsesDefault(t *testing.T) {
	registerStub(t, "test-eng-default", "hi")

	e, err := New(context.Background(), testConfig("test-eng-default"))
	require.NoError(t, err)

	conv, err := e.NewConversation("")
	require.NoError(t, err)

	msgs, err := conv.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello! How can I help?", msgs[0].Content)
}

func TestNewConversation_UnknownChat(t *testing.T) {
	registerStub(t, "test-eng-unknown")

	e, err := New(context.Background(), testConfig("test-eng-unknown"))
	require.NoError(t, err)

	_, err = e.NewConversation("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `chat "nope" not found`)
}

func TestNewConversation_BuildOptionsApply(t *testing.T) {
	stub := registerStub(t, "test-eng-opts", "ok")

	e, err := New(context.Background(), testConfig("test-eng-opts"))
	require.NoError(t, err)

	conv, err := e.NewConversation("support",
		chat.WithParams(backend.Params{Temperature: backend.Float64(0.9)}),
		chat.WithGreeting(""),
	)
	require.NoError(t, err)

	n, err := conv.History().Len()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = conv.Send(context.Background(), "Hi")
	require.NoError(t, err)

	req := stub.requests()[0]
	require.NotNil(t, req.Params.Temperature)
	assert.InDelta(t, 0.9, *req.Params.Temperature, 1e-9)
}

func TestNewConversation_SQLiteHistory(t *testing.T) {
	registerStub(t, "test-eng-sqlite", "first reply", "second reply")

	cfg := testConfig("test-eng-sqlite")
	cfg.Chats[0].History = HistoryConfig{
		Kind:           "sqlite",
		Path:           filepath.Join(t.TempDir(), "chats.db"),
		ConversationID: "conv-1",
	}

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)

	conv, err := e.NewConversation("support")
	require.NoError(t, err)

	_, err = conv.Send(context.Background(), "Hi")
	require.NoError(t, err)

	require.NoError(t, e.Close())

	// Reopening the same conversation restores the record, so no new
	// greeting is injected.
	e2, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer e2.Close()

	conv2, err := e2.NewConversation("support")
	require.NoError(t, err)

	msgs, err := conv2.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 3) // greeting + user + assistant
	assert.Equal(t, "first reply", msgs[2].Content)
}

func TestNewConversation_FileHistory(t *testing.T) {
	registerStub(t, "test-eng-file", "noted")

	cfg := testConfig("test-eng-file")
	cfg.Chats[1].History = HistoryConfig{
		Kind: "file",
		Path: filepath.Join(t.TempDir(), "chat.json"),
	}

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer e.Close()

	conv, err := e.NewConversation("plain")
	require.NoError(t, err)

	_, err = conv.Send(context.Background(), "Remember this.")
	require.NoError(t, err)

	f, err := history.OpenFile(cfg.Chats[1].History.Path)
	require.NoError(t, err)

	n, err := f.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n) // user + assistant
}

func TestNewConversation_WithHistoryOverridesConfig(t *testing.T) {
	registerStub(t, "test-eng-hist-override", "ok")

	cfg := testConfig("test-eng-hist-override")
	cfg.Chats[0].History = HistoryConfig{
		Kind: "file",
		Path: filepath.Join(t.TempDir(), "ignored.json"),
	}

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer e.Close()

	mem := history.NewMemory()
	conv, err := e.NewConversation("support", chat.WithHistory(mem))
	require.NoError(t, err)

	assert.Same(t, mem, conv.History())
}
