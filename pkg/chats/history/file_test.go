package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/germanamz/parley/pkg/chats/message"
	"github.com/germanamz/parley/pkg/chats/role"
	"github.com/stretchr/testify/require"
)

func TestOpenFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")

	h, err := OpenFile(path)
	require.NoError(t, err)
	require.Equal(t, path, h.Path())

	n, err := h.Len()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestFile_AppendPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")

	h, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, h.Append(message.User("ping"), message.Assistant("pong")))

	// Reopen and check the record survived.
	h2, err := OpenFile(path)
	require.NoError(t, err)

	msgs, err := h2.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, role.User, msgs[0].Role)
	require.Equal(t, "ping", msgs[0].Content)
	require.Equal(t, role.Assistant, msgs[1].Role)
	require.Equal(t, "pong", msgs[1].Content)
}

func TestFile_AppendOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")

	h, err := OpenFile(path)
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, h.Append(message.User(text)))
	}

	msgs, err := h.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "one", msgs[0].Content)
	require.Equal(t, "two", msgs[1].Content)
	require.Equal(t, "three", msgs[2].Content)
}

func TestOpenFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := OpenFile(path)
	require.Error(t, err)
}
