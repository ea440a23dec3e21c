package main

import (
	"fmt"
	"time"

	"github.com/germanamz/parley/pkg/chat"
)

// statusBarModel shows token usage and timing information.
type statusBarModel struct {
	conv     *chat.Conversation[string]
	chatName string
	duration time.Duration
}

func newStatusBar(conv *chat.Conversation[string], chatName string) statusBarModel {
	return statusBarModel{conv: conv, chatName: chatName}
}

func (m statusBarModel) View() string {
	tracker := m.conv.Usage()
	total := tracker.Total()
	last, hasLast := tracker.Last()

	name := m.chatName
	if resp, ok := m.conv.LastResponse(); ok && resp.Model != "" {
		name = m.chatName + " · " + resp.Model
	}

	var line string
	switch {
	case hasLast && m.duration > 0:
		line = fmt.Sprintf(" %s · last: ↑%s ↓%s · total: ↑%s ↓%s · %s",
			name,
			fmtTokens(last.InputTokens),
			fmtTokens(last.OutputTokens),
			fmtTokens(total.InputTokens),
			fmtTokens(total.OutputTokens),
			fmtDuration(m.duration),
		)
	case total.InputTokens+total.OutputTokens > 0:
		line = fmt.Sprintf(" %s · tokens: ↑%s ↓%s",
			name,
			fmtTokens(total.InputTokens),
			fmtTokens(total.OutputTokens),
		)
	default:
		line = fmt.Sprintf(" %s · /help for commands", name)
	}

	return statusStyle.Render(line)
}
