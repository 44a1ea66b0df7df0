package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// selectModel renders a single-choice list. It always resolves: cancelling
// picks the first option.
type selectModel struct {
	label   string
	options []string
	cursor  int
	done    bool
}

func newSelectModel(label string, options []string) selectModel {
	return selectModel{label: label, options: options}
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.done {
		return m, nil
	}

	maxIdx := len(m.options) - 1
	switch {
	case key.Matches(keyMsg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, keys.Down):
		if m.cursor < maxIdx {
			m.cursor++
		}
	case key.Matches(keyMsg, keys.Choose):
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, keys.Cancel):
		m.cursor = 0
		m.done = true
		return m, tea.Quit
	default:
		s := keyMsg.String()
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if idx := int(s[0] - '1'); idx <= maxIdx {
				m.cursor = idx
				m.done = true
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

// Value returns the highlighted option.
func (m selectModel) Value() string {
	if m.cursor < len(m.options) {
		return m.options[m.cursor]
	}
	return ""
}

func (m selectModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	title := m.label
	if title == "" {
		title = "Select an option"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	for i, opt := range m.options {
		num := keyStyle.Render(fmt.Sprintf("%d.", i+1))
		if i == m.cursor {
			b.WriteString(cursorStyle.Render(GlyphCursor+" ") + num + " " + cursorStyle.Render(opt))
		} else {
			b.WriteString("  " + num + " " + optionStyle.Render(opt))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpLine(keys.Up, keys.Down, keys.Choose))
	b.WriteString("\n")
	return b.String()
}
