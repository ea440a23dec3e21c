package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/parley/pkg/chat"
	"github.com/germanamz/parley/pkg/chats/role"
)

// appState represents the application state machine.
type appState int

const (
	stateIdle appState = iota
	stateProcessing
)

// appModel is the root bubbletea model.
type appModel struct {
	ctx          context.Context
	conv         *chat.Conversation[string]
	chatView     chatViewModel
	inputBox     inputModel
	statusBar    statusBarModel
	state        appState
	width        int
	height       int
	sendStart    time.Time
	historyShown bool
}

func newAppModel(ctx context.Context, conv *chat.Conversation[string], chatName string) appModel {
	return appModel{
		ctx:       ctx,
		conv:      conv,
		chatView:  newChatView(chatName),
		inputBox:  newInput(),
		statusBar: newStatusBar(conv, chatName),
		state:     stateIdle,
	}
}

func (m appModel) Init() tea.Cmd {
	// Delay focusing the input so that stale terminal escape-sequence
	// responses (e.g. OSC 11 background-color) are drained first.
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return initDrainMsg{}
	})
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case initDrainMsg:
		cmd := m.inputBox.enable()
		return m, cmd

	case inputSubmitMsg:
		return m.handleSubmit(msg)

	case sendCompleteMsg:
		return m.handleSendComplete(msg)

	case tickMsg:
		if m.state == stateProcessing {
			m.chatView.advanceSpinner()
			return m, tickCmd()
		}
		return m, nil
	}

	// Delegate remaining messages to the input box when idle.
	if m.state == stateIdle {
		var cmd tea.Cmd
		m.inputBox, cmd = m.inputBox.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m appModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.chatView.View(),
		m.inputBox.View(),
		m.statusBar.View(),
	)
}

func (m *appModel) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	initMarkdownRenderer(m.width - 4)
	m.inputBox.setWidth(m.width)
	m.recalcLayout()

	// Replay the existing record once the renderer knows the terminal width.
	// This shows the greeting, or the transcript of a restored conversation.
	if !m.historyShown {
		m.historyShown = true
		m.showHistory()
	}

	var cmd tea.Cmd
	m.chatView, cmd = m.chatView.Update(msg)
	return m, cmd
}

func (m *appModel) showHistory() {
	msgs, err := m.conv.Messages()
	if err != nil {
		m.chatView.addError("load history: " + err.Error())
		return
	}

	for _, msg := range msgs {
		switch msg.Role {
		case role.User:
			m.chatView.addUser(msg.Content)
		case role.Assistant:
			m.chatView.addReply(msg.Content)
		}
	}
}

func (m *appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	// Transcript scrolling works in any state.
	if msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	// Forward to input box when idle.
	if m.state == stateIdle {
		var cmd tea.Cmd
		m.inputBox, cmd = m.inputBox.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *appModel) handleSubmit(msg inputSubmitMsg) (tea.Model, tea.Cmd) {
	text := msg.text

	if text == "/quit" || text == "/exit" {
		return m, tea.Quit
	}

	if text == "/help" {
		m.chatView.addBlock(helpText())
		m.recalcLayout()
		return m, nil
	}

	m.chatView.addUser(text)

	m.state = stateProcessing
	m.inputBox.disable()
	m.chatView.setProcessing(true)
	m.sendStart = time.Now()

	// Start the send in a background goroutine via tea.Cmd.
	conv := m.conv
	ctx := m.ctx
	start := m.sendStart
	sendCmd := func() tea.Msg {
		reply, err := conv.Send(ctx, text)
		return sendCompleteMsg{reply: reply, err: err, duration: time.Since(start)}
	}

	return m, tea.Batch(sendCmd, tickCmd())
}

func (m *appModel) handleSendComplete(msg sendCompleteMsg) (tea.Model, tea.Cmd) {
	m.statusBar.duration = msg.duration
	m.state = stateIdle
	focusCmd := m.inputBox.enable()
	m.chatView.setProcessing(false)

	if msg.err != nil {
		if m.ctx.Err() == nil {
			m.chatView.addError(msg.err.Error())
		}
	} else {
		m.chatView.addReply(msg.reply)
	}

	m.recalcLayout()
	return m, focusCmd
}

func (m *appModel) recalcLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	// Status bar = 1 line, input box ~ border(2) + content lines.
	statusHeight := 1
	inputHeight := lipgloss.Height(m.inputBox.View())
	chatHeight := max(m.height-inputHeight-statusHeight, 1)
	m.chatView.setSize(m.width, chatHeight)
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func helpText() string {
	return dimStyle.Render(
		"Commands:\n" +
			"  /help          Show this help message\n" +
			"  /quit          Exit the chat\n\n" +
			"Shortcuts:\n" +
			"  Enter          Submit message\n" +
			"  Alt+Enter      New line\n" +
			"  PgUp/PgDn      Scroll the transcript\n" +
			"  Ctrl+C         Exit",
	)
}
