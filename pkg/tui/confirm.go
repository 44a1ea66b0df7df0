package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{} })
}

// confirmModel asks a yes/no question. With a countdown, reaching zero
// answers yes.
type confirmModel struct {
	question  string
	def       bool
	remaining time.Duration
	value     bool
	done      bool
	expired   bool
}

func newConfirmModel(question string, def bool, countdown time.Duration) confirmModel {
	return confirmModel{question: question, def: def, remaining: countdown}
}

func (m confirmModel) Init() tea.Cmd {
	if m.remaining > 0 {
		return tick()
	}
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}
	switch msg := msg.(type) {
	case tickMsg:
		m.remaining -= time.Second
		if m.remaining <= 0 {
			m.value, m.expired, m.done = true, true, true
			return m, tea.Quit
		}
		return m, tick()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Yes):
			m.value, m.done = true, true
		case key.Matches(msg, keys.No), key.Matches(msg, keys.Cancel):
			m.value, m.done = false, true
		case key.Matches(msg, keys.Choose):
			m.value, m.done = m.def, true
		default:
			return m, nil
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.question))
	if m.def {
		b.WriteString(hintStyle.Render(" [Y/n]"))
	} else {
		b.WriteString(hintStyle.Render(" [y/N]"))
	}
	if m.remaining > 0 {
		b.WriteString(" " + countdownStyle.Render(fmt.Sprintf("yes in %s", m.remaining.Round(time.Second))))
	}
	b.WriteString("\n")
	return b.String()
}
