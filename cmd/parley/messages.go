package main

import "time"

// inputSubmitMsg carries the text the user submitted from the input box.
type inputSubmitMsg struct {
	text string
}

// sendCompleteMsg is returned by the tea.Cmd that calls Send on the conversation.
type sendCompleteMsg struct {
	reply    string
	err      error
	duration time.Duration
}

// initDrainMsg fires after a short delay so that stale terminal responses
// (e.g. OSC 11 background-color replies) are discarded before focusing input.
type initDrainMsg struct{}

// tickMsg drives the processing spinner animation.
type tickMsg time.Time
