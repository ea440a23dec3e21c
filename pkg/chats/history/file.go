package history

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/germanamz/parley/pkg/chats/message"
)

// File is a History persisted as a JSON array on disk. The full record is
// loaded at open time and rewritten on every append, which keeps the format
// trivially inspectable. Suited to small conversations; use SQLite for
// anything long-lived.
// File is not safe for concurrent use; callers must synchronize externally.
type File struct {
	path string
	msgs []message.Message
}

var _ History = (*File)(nil)

// OpenFile opens a file-backed History at path, loading any existing
// messages. A missing file is treated as an empty record and created on the
// first append.
func OpenFile(path string) (*File, error) {
	f := &File{path: path}

	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &f.msgs); err != nil {
		return nil, fmt.Errorf("history: decode %s: %w", path, err)
	}

	return f, nil
}

// Path returns the file path backing this History.
func (f *File) Path() string { return f.path }

// Append adds one or more messages and rewrites the backing file.
func (f *File) Append(msgs ...message.Message) error {
	f.msgs = append(f.msgs, msgs...)

	data, err := json.MarshalIndent(f.msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode %s: %w", f.path, err)
	}

	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("history: write %s: %w", f.path, err)
	}

	return nil
}

// Messages returns a copy of all messages, oldest first.
func (f *File) Messages() ([]message.Message, error) {
	cp := make([]message.Message, len(f.msgs))
	copy(cp, f.msgs)
	return cp, nil
}

// Len returns the number of stored messages.
func (f *File) Len() (int, error) {
	return len(f.msgs), nil
}
