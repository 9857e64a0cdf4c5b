package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// chatBlock is one rendered entry in the conversation transcript.
type chatBlock struct {
	content string
}

// chatViewModel renders the conversation transcript in a scrollable viewport.
// While a hub call is in flight, a spinner line is appended below the blocks.
type chatViewModel struct {
	viewport      viewport.Model
	blocks        []chatBlock
	processing    bool   // true while a hub call is in flight
	spinnerIdx    int    // frame index for the processing spinner
	processingMsg string // random message shown while waiting for the hub
	width         int
	ready         bool
}

func newChatView() chatViewModel {
	return chatViewModel{}
}

func (m chatViewModel) View() string {
	if !m.ready {
		return ""
	}
	return m.viewport.View()
}

func (m chatViewModel) Update(msg tea.Msg) (chatViewModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// addBlock appends a block to the transcript and scrolls to the bottom.
func (m *chatViewModel) addBlock(content string) {
	m.blocks = append(m.blocks, chatBlock{content: content})
	m.updateViewport()
}

// updateViewport re-renders the transcript into the viewport and follows the
// bottom.
func (m *chatViewModel) updateViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoBottom()
}

func (m chatViewModel) renderContent() string {
	var sb strings.Builder

	for _, b := range m.blocks {
		sb.WriteString(b.content)
		sb.WriteString("\n")
	}

	if m.processing {
		frame := spinnerFrames[m.spinnerIdx%len(spinnerFrames)]
		fmt.Fprintf(&sb, "\n  %s %s\n",
			spinnerStyle.Render(frame),
			spinnerStyle.Render(m.processingMsg),
		)
	}

	return sb.String()
}

// setSize resizes the viewport, creating it on first use.
func (m *chatViewModel) setSize(width, height int) {
	m.width = width
	if !m.ready {
		m.viewport = viewport.New(width, height)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = height
	}
	m.updateViewport()
}

// setProcessing sets the processing state and picks a random spinner message.
func (m *chatViewModel) setProcessing(on bool) {
	m.processing = on
	if on {
		m.processingMsg = randomThinkingMessage()
	}
	m.updateViewport()
}

// advanceSpinner increments the spinner frame.
func (m *chatViewModel) advanceSpinner() {
	m.spinnerIdx++
	m.updateViewport()
}
