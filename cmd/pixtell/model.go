package main

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ronwebb/pixtell/pkg/engine"
)

// appState represents the application state machine.
type appState int

const (
	stateIdle appState = iota
	stateProcessing
)

const (
	imagePlaceholder    = "Enter an image path or URL..."
	questionPlaceholder = "Ask a question about the image... (/new for another image)"
)

// appModel is the root bubbletea model.
type appModel struct {
	ctx        context.Context
	sess       *engine.Session
	chatView   chatViewModel
	inputBox   inputModel
	statusBar  statusBarModel
	state      appState
	cancelCall context.CancelFunc // cancels the in-flight hub call
	width      int
	height     int
	sendStart  time.Time
}

func newAppModel(ctx context.Context, sess *engine.Session, eng *engine.Engine) appModel {
	m := appModel{
		ctx:       ctx,
		sess:      sess,
		chatView:  newChatView(),
		inputBox:  newInput(),
		statusBar: newStatusBar(eng.Config().Models.Caption, eng.CaptionStats(), eng.AnswerStats()),
		state:     stateIdle,
	}
	m.chatView.blocks = append(m.chatView.blocks, chatBlock{content: welcomeText()})
	return m
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

	case captionResultMsg:
		return m.handleCaptionResult(msg)

	case answerResultMsg:
		return m.handleAnswerResult(msg)

	case tickMsg:
		if m.state == stateProcessing {
			m.chatView.advanceSpinner()
			return m, tickCmd()
		}
		return m, nil
	}

	// Delegate to the input box when idle, the chat viewport otherwise.
	if m.state == stateIdle {
		var cmd tea.Cmd
		m.inputBox, cmd = m.inputBox.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.chatView, cmd = m.chatView.Update(msg)
	return m, cmd
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

	return m, nil
}

func (m *appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.cancelActiveCall()
		return m, tea.Quit
	}

	// Escape aborts the in-flight hub call and returns to the prompt.
	if msg.Type == tea.KeyEsc && m.state == stateProcessing {
		m.cancelActiveCall()
		return m, nil
	}

	if m.state == stateIdle {
		var cmd tea.Cmd
		m.inputBox, cmd = m.inputBox.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *appModel) handleSubmit(msg inputSubmitMsg) (tea.Model, tea.Cmd) {
	text := msg.text

	switch text {
	case "/quit", "/exit", "exit":
		return m, tea.Quit
	case "/help":
		m.chatView.addBlock(helpText())
		m.recalcLayout()
		return m, nil
	case "/new", "new":
		m.sess.ClearImage()
		m.inputBox.setPlaceholder(imagePlaceholder)
		m.chatView.addBlock(hintStyle.Render("Enter the path or URL of the next image to analyze."))
		m.recalcLayout()
		return m, nil
	}

	m.chatView.addBlock(userPrefixStyle.Render("you> ") + text)

	m.state = stateProcessing
	m.inputBox.disable()
	m.chatView.setProcessing(true)
	m.sendStart = time.Now()
	m.recalcLayout()

	// No image yet: the submitted text is an image reference. Otherwise it
	// is a question about the current image. Each call gets its own cancel
	// func so Escape can abort it without quitting the program.
	sess := m.sess
	callCtx, cancel := context.WithCancel(m.ctx)
	m.cancelCall = cancel
	start := m.sendStart

	if _, ok := sess.Image(); !ok {
		ref := stripQuotes(text)
		sendCmd := func() tea.Msg {
			if err := sess.SetImage(callCtx, ref); err != nil {
				return captionResultMsg{ref: ref, err: err, duration: time.Since(start)}
			}
			caption, err := sess.Describe(callCtx)
			return captionResultMsg{ref: ref, caption: caption, err: err, duration: time.Since(start)}
		}
		return m, tea.Batch(sendCmd, tickCmd())
	}

	question := stripQuotes(text)
	sendCmd := func() tea.Msg {
		answer, err := sess.Ask(callCtx, question)
		return answerResultMsg{question: question, answer: answer, err: err, duration: time.Since(start)}
	}
	return m, tea.Batch(sendCmd, tickCmd())
}

func (m *appModel) handleCaptionResult(msg captionResultMsg) (tea.Model, tea.Cmd) {
	focusCmd := m.finishCall(msg.err, msg.duration)

	if msg.err == nil {
		m.chatView.addBlock(answerBlockStyle.Render(
			captionPrefixStyle.Render("Caption: ") + renderMarkdown(msg.caption),
		))
		m.inputBox.setPlaceholder(questionPlaceholder)
	} else {
		// A failed load or caption leaves the session without a usable
		// image, so the next submit is treated as a fresh reference.
		m.sess.ClearImage()
	}

	m.recalcLayout()
	return m, focusCmd
}

func (m *appModel) handleAnswerResult(msg answerResultMsg) (tea.Model, tea.Cmd) {
	focusCmd := m.finishCall(msg.err, msg.duration)

	if msg.err == nil {
		m.chatView.addBlock(answerBlockStyle.Render(
			answerPrefixStyle.Render("pixtell> ") + renderMarkdown(msg.answer),
		))
	}

	m.recalcLayout()
	return m, focusCmd
}

// finishCall returns the model to the idle state and renders any error.
func (m *appModel) finishCall(err error, duration time.Duration) tea.Cmd {
	if m.cancelCall != nil {
		m.cancelCall()
		m.cancelCall = nil
	}

	m.statusBar.duration = duration
	m.state = stateIdle
	m.chatView.setProcessing(false)
	focusCmd := m.inputBox.enable()

	switch {
	case err == nil, m.ctx.Err() != nil:
	case errors.Is(err, context.Canceled):
		m.chatView.addBlock(dimStyle.Render("Call cancelled."))
	default:
		m.chatView.addBlock(errorBlockStyle.Render("error: " + err.Error()))
	}

	return focusCmd
}

// cancelActiveCall aborts the in-flight hub call, if any.
func (m *appModel) cancelActiveCall() {
	if m.cancelCall != nil {
		m.cancelCall()
	}
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

func welcomeText() string {
	return hintStyle.Render("pixtell: describe an image, then ask questions about it.") + "\n" +
		dimStyle.Render("Enter the path or URL of the image to analyze (or /help).")
}

func helpText() string {
	return dimStyle.Render(
		"Commands:\n" +
			"  /help          Show this help message\n" +
			"  /new           Pick another image\n" +
			"  /quit          Exit the chat\n\n" +
			"Shortcuts:\n" +
			"  Enter          Submit\n" +
			"  Alt+Enter      New line\n" +
			"  Esc            Cancel the current call\n" +
			"  Ctrl+C         Exit",
	)
}
