package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatView_AddUser(t *testing.T) {
	cv := newChatView("assistant")
	cv.setSize(80, 20)

	cv.addUser("hello there")

	view := cv.View()
	assert.Contains(t, view, "You")
	assert.Contains(t, view, "hello there")
}

func TestChatView_AddReply(t *testing.T) {
	cv := newChatView("support")
	cv.setSize(80, 20)

	cv.addReply("All good.")

	view := cv.View()
	assert.Contains(t, view, "support")
	assert.Contains(t, view, "All good.")
}

func TestChatView_AddError(t *testing.T) {
	cv := newChatView("assistant")
	cv.setSize(80, 20)

	cv.addError("boom")

	assert.Contains(t, cv.View(), "error: boom")
}

func TestChatView_ProcessingSpinner(t *testing.T) {
	cv := newChatView("assistant")
	cv.setSize(80, 20)

	cv.setProcessing(true)
	assert.NotEmpty(t, cv.processingMsg)
	assert.Contains(t, cv.View(), cv.processingMsg)

	cv.setProcessing(false)
	assert.NotContains(t, cv.View(), cv.processingMsg)
}

func TestChatView_PinsToBottom(t *testing.T) {
	cv := newChatView("assistant")
	cv.setSize(80, 5)

	for i := 0; i < 20; i++ {
		cv.addUser("line")
	}

	assert.True(t, cv.viewport.AtBottom())
}
