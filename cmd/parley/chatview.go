package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// chatBlock is one rendered entry in the transcript.
type chatBlock struct {
	content string
}

// chatViewModel keeps the rendered transcript in a scrollable viewport.
type chatViewModel struct {
	viewport      viewport.Model
	blocks        []chatBlock
	chatName      string
	processing    bool   // true while a send is in flight
	spinnerIdx    int    // frame index for the processing spinner
	processingMsg string // random message shown while waiting for the reply
}

func newChatView(chatName string) chatViewModel {
	return chatViewModel{
		viewport: viewport.New(0, 0),
		chatName: chatName,
	}
}

func (m chatViewModel) View() string {
	return m.viewport.View()
}

// Update forwards messages to the viewport so PgUp/PgDn scrolling works.
func (m chatViewModel) Update(msg tea.Msg) (chatViewModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// addUser appends a user message block.
func (m *chatViewModel) addUser(text string) {
	m.addBlock(renderUserMessage(text))
}

// addReply appends an assistant reply block, rendered as markdown.
func (m *chatViewModel) addReply(text string) {
	prefix := answerPrefixStyle.Render(fmt.Sprintf("🤖 %s > ", m.chatName))
	m.addBlock(answerBlockStyle.Render(prefix + renderMarkdown(text)))
}

// addError appends an error block.
func (m *chatViewModel) addError(text string) {
	m.addBlock(errorBlockStyle.Render("error: " + text))
}

func (m *chatViewModel) addBlock(content string) {
	m.blocks = append(m.blocks, chatBlock{content: content})
	m.updateViewport()
}

// updateViewport rebuilds the viewport content from the blocks. The view
// stays pinned to the bottom unless the user has scrolled up.
func (m *chatViewModel) updateViewport() {
	atBottom := m.viewport.AtBottom()

	var sb strings.Builder
	for i, b := range m.blocks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(b.content)
	}

	if m.processing {
		frame := spinnerFrames[m.spinnerIdx%len(spinnerFrames)]
		fmt.Fprintf(&sb, "\n\n  %s %s",
			spinnerStyle.Render(frame),
			spinnerStyle.Render(m.processingMsg),
		)
	}

	m.viewport.SetContent(sb.String())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *chatViewModel) setSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.updateViewport()
}

// setProcessing toggles the spinner and picks a random waiting message.
func (m *chatViewModel) setProcessing(on bool) {
	m.processing = on
	if on {
		m.processingMsg = randomThinkingMessage()
	}
	m.updateViewport()
}

// advanceSpinner moves the spinner to its next frame.
func (m *chatViewModel) advanceSpinner() {
	m.spinnerIdx++
	if m.processing {
		m.updateViewport()
	}
}
