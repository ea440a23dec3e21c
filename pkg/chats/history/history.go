// Package history provides append-only stores for conversation messages.
//
// A History records the messages exchanged in one conversation, oldest
// first. Histories never delete or edit: truncation and windowing policies
// belong to callers. The system prompt is not part of a History; it is
// rendered fresh on every call by the operator.
package history

import "github.com/germanamz/parley/pkg/chats/message"

// History is an append-only ordered record of exchanged messages.
type History interface {
	// Append adds one or more messages to the end of the record.
	Append(msgs ...message.Message) error
	// Messages returns all messages, oldest first. The returned slice is a
	// copy; mutating it does not affect the store.
	Messages() ([]message.Message, error)
	// Len returns the number of stored messages.
	Len() (int, error)
}

// Memory is an in-memory History. The zero value is ready to use.
// Memory is not safe for concurrent use; callers must synchronize externally.
type Memory struct {
	msgs []message.Message
}

var _ History = (*Memory)(nil)

// NewMemory creates a Memory pre-populated with the given messages.
func NewMemory(msgs ...message.Message) *Memory {
	return &Memory{msgs: msgs}
}

// Append adds one or more messages to the record.
func (m *Memory) Append(msgs ...message.Message) error {
	m.msgs = append(m.msgs, msgs...)
	return nil
}

// Messages returns a copy of all messages, oldest first.
func (m *Memory) Messages() ([]message.Message, error) {
	cp := make([]message.Message, len(m.msgs))
	copy(cp, m.msgs)
	return cp, nil
}

// Len returns the number of stored messages.
func (m *Memory) Len() (int, error) {
	return len(m.msgs), nil
}
