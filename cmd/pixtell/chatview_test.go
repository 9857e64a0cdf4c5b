package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatViewAddBlock(t *testing.T) {
	cv := newChatView()
	cv.setSize(80, 20)

	cv.addBlock("first message")
	cv.addBlock("second message")

	content := cv.renderContent()
	assert.Contains(t, content, "first message")
	assert.Contains(t, content, "second message")
}

func TestChatViewProcessingSpinner(t *testing.T) {
	cv := newChatView()
	cv.setSize(80, 20)

	cv.setProcessing(true)
	assert.Contains(t, cv.renderContent(), cv.processingMsg)

	cv.setProcessing(false)
	assert.NotContains(t, cv.renderContent(), cv.processingMsg)
}

func TestChatViewSpinnerAdvances(t *testing.T) {
	cv := newChatView()
	cv.setSize(80, 20)
	cv.setProcessing(true)

	first := cv.renderContent()
	cv.advanceSpinner()
	second := cv.renderContent()

	assert.NotEqual(t, first, second)
}

func TestChatViewNotReadyBeforeResize(t *testing.T) {
	cv := newChatView()

	// Blocks accumulate but nothing renders until the first resize.
	cv.addBlock("queued")
	assert.Empty(t, cv.View())

	cv.setSize(80, 20)
	assert.Contains(t, cv.renderContent(), "queued")
}
