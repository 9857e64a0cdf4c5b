package main

import (
	"time"
)

// inputSubmitMsg carries the text the user submitted from the input box.
type inputSubmitMsg struct {
	text string
}

// captionResultMsg is returned by the tea.Cmd that loads an image and asks
// the hub to caption it.
type captionResultMsg struct {
	ref      string
	caption  string
	err      error
	duration time.Duration
}

// answerResultMsg is returned by the tea.Cmd that asks a question about the
// current image.
type answerResultMsg struct {
	question string
	answer   string
	err      error
	duration time.Duration
}

// initDrainMsg fires after a short delay so that stale terminal responses
// (e.g. OSC 11 background-color replies) are discarded before focusing input.
type initDrainMsg struct{}

// tickMsg drives the processing spinner animation.
type tickMsg time.Time
