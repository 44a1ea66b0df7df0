// Package inspector is a Bubble Tea browser for recorded scan traces: one
// line per pass, with the selected pass's resolved blocks and branch
// decisions shown below.
package inspector

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ormasoftchile/scanflow/pkg/trace"
)

// PassState tracks one execution pass of the sequence.
type PassState struct {
	Number   int
	Status   string // "running", "complete", "aborted"
	Display  string
	Reason   string
	Blocks   []string
	Branches []string
	Loop     string
}

// Model is the Bubble Tea model for the trace inspector.
type Model struct {
	profile  string
	mode     string
	passes   []PassState
	selected int
	status   string // "idle", "running", "completed", "stopped"
	results  int
	reason   string
	duration time.Duration
	width    int
	height   int
}

// NewModel builds an inspector from a decoded trace.
func NewModel(events []trace.Event) Model {
	m := Model{status: "idle"}
	for _, evt := range events {
		m.applyTraceEvent(evt)
	}
	return m
}

// Passes returns the reconstructed passes.
func (m Model) Passes() []PassState { return m.passes }

// eventMsg delivers a trace event to a running inspector.
type eventMsg struct {
	Event trace.Event
}

// Event wraps a trace event as a message for a running inspector.
func Event(evt trace.Event) tea.Msg { return eventMsg{Event: evt} }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.passes)-1 {
				m.selected++
			}
		case "home", "g":
			m.selected = 0
		case "end", "G":
			if len(m.passes) > 0 {
				m.selected = len(m.passes) - 1
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case eventMsg:
		m.applyTraceEvent(msg.Event)
	}

	return m, nil
}

// applyTraceEvent folds one event into the pass list.
func (m *Model) applyTraceEvent(evt trace.Event) {
	switch evt.Type {
	case trace.EventSequenceStart:
		m.profile, _ = evt.Data["profile"].(string)
		m.mode, _ = evt.Data["mode"].(string)
		m.status = "running"
	case trace.EventPassStart:
		m.passes = append(m.passes, PassState{Number: intOf(evt.Data["pass"]), Status: "running"})
	case trace.EventBlockResolved:
		if p := m.current(); p != nil {
			kind, _ := evt.Data["kind"].(string)
			value, _ := evt.Data["value"].(string)
			p.Blocks = append(p.Blocks, fmt.Sprintf("#%d %s %q", intOf(evt.Data["index"]), kind, value))
		}
	case trace.EventBranchTaken:
		if p := m.current(); p != nil {
			cond, _ := evt.Data["condition"].(string)
			taken, _ := evt.Data["taken"].(bool)
			p.Branches = append(p.Branches, fmt.Sprintf("#%d if %s → %v", intOf(evt.Data["index"]), cond, taken))
		}
	case trace.EventPassComplete:
		if p := m.current(); p != nil {
			p.Status = "complete"
			p.Display, _ = evt.Data["display_value"].(string)
		}
	case trace.EventPassAborted:
		if p := m.current(); p != nil {
			p.Status = "aborted"
			p.Reason, _ = evt.Data["reason"].(string)
		}
	case trace.EventLoopSuspected:
		if p := m.current(); p != nil {
			resumed, _ := evt.Data["resumed"].(bool)
			answer := "stopped"
			if resumed {
				answer = "resumed"
			}
			p.Loop = fmt.Sprintf("same value %d times, %s", intOf(evt.Data["repeats"]), answer)
		}
	case trace.EventSequenceComplete:
		m.results = intOf(evt.Data["results"])
		m.reason, _ = evt.Data["reason"].(string)
		if d, ok := evt.Data["duration"].(string); ok {
			m.duration, _ = time.ParseDuration(d)
		}
		m.status = "completed"
		if m.reason != "" {
			m.status = "stopped"
		}
	}
}

func (m *Model) current() *PassState {
	if len(m.passes) == 0 {
		return nil
	}
	return &m.passes[len(m.passes)-1]
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	// Header
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	title := m.profile
	if title == "" {
		title = "(unknown profile)"
	}
	if m.mode != "" {
		title += " [" + m.mode + "]"
	}
	b.WriteString(headerStyle.Render("  scanflow inspect: " + title))
	b.WriteString("\n\n")

	// Pass list
	for i, p := range m.passes {
		line := fmt.Sprintf("  %s pass %d", passIcon(p.Status), p.Number)
		switch p.Status {
		case "complete":
			line += "  " + p.Display
		case "aborted":
			line += "  (" + p.Reason + ")"
		}

		if i == m.selected {
			selectedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
			b.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	// Status bar
	b.WriteString("\n")
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	switch m.status {
	case "idle":
		b.WriteString(statusStyle.Render("  Empty trace"))
	case "running":
		b.WriteString(statusStyle.Render("  Incomplete trace"))
	case "completed":
		outcomeStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("40"))
		b.WriteString(outcomeStyle.Render(fmt.Sprintf("  ✓ %d result(s) in %s", m.results, m.duration)))
	case "stopped":
		failStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
		b.WriteString(failStyle.Render(fmt.Sprintf("  ■ %d result(s), stopped: %s", m.results, m.reason)))
	}

	// Detail panel
	if m.selected < len(m.passes) {
		p := m.passes[m.selected]
		if len(p.Branches) > 0 || len(p.Blocks) > 0 || p.Loop != "" {
			b.WriteString("\n\n")
			b.WriteString(statusStyle.Render(fmt.Sprintf("  Pass %d:", p.Number)))
		}
		for _, br := range p.Branches {
			b.WriteString("\n  ◇ " + br)
		}
		for _, bl := range p.Blocks {
			b.WriteString("\n    " + bl)
		}
		if p.Loop != "" {
			b.WriteString("\n  ⚠ " + p.Loop)
		}
	}

	b.WriteString("\n\n")
	b.WriteString(statusStyle.Render("  q: quit  ↑/↓: navigate"))

	return b.String()
}

func passIcon(status string) string {
	switch status {
	case "running":
		return "◉"
	case "complete":
		return "✓"
	case "aborted":
		return "✗"
	default:
		return "?"
	}
}

// intOf reads a JSON number that decoded as float64, or a Go int when the
// event never left memory.
func intOf(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case uint64:
		return int(n)
	default:
		return 0
	}
}
