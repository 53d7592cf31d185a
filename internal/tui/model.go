// Package tui is the interactive terminal host for voice input.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rbright/askvoice/internal/notify"
	"github.com/rbright/askvoice/internal/session"
)

const (
	refreshInterval = 200 * time.Millisecond
	// MaxInputLength caps the pending input, matching the chat input limit.
	MaxInputLength = 1000
	sentHistory    = 5
)

// Controller is the voice surface the model drives.
type Controller interface {
	Snapshot() session.Snapshot
	Start(context.Context) error
	Stop(context.Context) (session.Outcome, error)
	Cancel()
	Teardown()
	SetPending(string)
	TakePending() string
}

// Notifications exposes the live notification set.
type Notifications interface {
	Live() []notify.Notification
}

type (
	tickMsg    time.Time
	startedMsg struct{ err error }
	stoppedMsg struct {
		outcome session.Outcome
		err     error
	}
	sentMsg struct {
		text string
		err  error
	}
)

// Model is the bubbletea model for the voice input screen.
type Model struct {
	ctx       context.Context
	ctrl      Controller
	notes     Notifications
	committer session.Committer

	input   textarea.Model
	snap    session.Snapshot
	live    []notify.Notification
	pending string
	sent    []string
	err     error
	width   int
	busy    bool
}

// New builds a model. committer receives text when the user sends the pending input.
func New(ctx context.Context, ctrl Controller, notes Notifications, committer session.Committer) Model {
	input := textarea.New()
	input.Placeholder = "Nhập hoặc nói câu hỏi... (Enter để gửi)"
	input.CharLimit = MaxInputLength
	input.ShowLineNumbers = false
	input.SetHeight(3)
	input.KeyMap.InsertNewline.SetEnabled(false)
	input.Focus()

	m := Model{
		ctx:       ctx,
		ctrl:      ctrl,
		notes:     notes,
		committer: committer,
		input:     input,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.SetWidth(max(20, msg.Width-4))
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case startedMsg:
		m.busy = false
		m.err = ignoreReported(msg.err)
		m.refresh()
		return m, nil

	case stoppedMsg:
		m.busy = false
		m.err = ignoreReported(msg.err)
		m.refresh()
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sent = append(m.sent, msg.text)
		if len(m.sent) > sentHistory {
			m.sent = m.sent[len(m.sent)-sentHistory:]
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.ctrl.Teardown()
		return m, tea.Quit
	case tea.KeyCtrlR:
		return m.toggleRecording()
	case tea.KeyEsc:
		if m.snap.State == session.HostRecording {
			m.ctrl.Cancel()
			m.refresh()
		}
		return m, nil
	case tea.KeyEnter:
		return m.send()
	}

	if m.snap.State != session.HostIdle {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != m.pending {
		m.ctrl.SetPending(value)
		m.pending = value
	}
	return m, cmd
}

// toggleRecording starts when idle and stops when recording; it ignores processing.
func (m Model) toggleRecording() (tea.Model, tea.Cmd) {
	if m.busy || !m.snap.VoiceEnabled {
		return m, nil
	}
	ctx, ctrl := m.ctx, m.ctrl
	switch m.snap.State {
	case session.HostIdle:
		m.busy = true
		m.err = nil
		return m, func() tea.Msg { return startedMsg{err: ctrl.Start(ctx)} }
	case session.HostRecording:
		m.busy = true
		return m, func() tea.Msg {
			outcome, err := ctrl.Stop(ctx)
			return stoppedMsg{outcome: outcome, err: err}
		}
	default:
		return m, nil
	}
}

// send hands the pending input to the committer, disabled while recording.
func (m Model) send() (tea.Model, tea.Cmd) {
	if m.snap.State != session.HostIdle || strings.TrimSpace(m.pending) == "" {
		return m, nil
	}
	text := m.ctrl.TakePending()
	m.pending = ""
	m.input.Reset()
	ctx, committer := m.ctx, m.committer
	return m, func() tea.Msg {
		if committer == nil {
			return sentMsg{text: text}
		}
		return sentMsg{text: text, err: committer.Commit(ctx, text)}
	}
}

// refresh pulls controller state and live notifications into the model.
func (m *Model) refresh() {
	m.snap = m.ctrl.Snapshot()
	if m.notes != nil {
		m.live = m.notes.Live()
	}
	if m.snap.Pending != m.pending {
		m.input.SetValue(m.snap.Pending)
		m.pending = m.snap.Pending
	}
	if m.snap.State == session.HostIdle {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// ignoreReported drops errors the controller already surfaced as a notification.
func ignoreReported(err error) error {
	if err == nil || isReported(err) {
		return nil
	}
	return err
}
