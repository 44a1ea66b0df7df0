package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// inputModel reads one line: a quantity or a manually typed barcode.
type inputModel struct {
	title     string
	input     textinput.Model
	numeric   bool // reject values that do not parse as a number
	required  bool // reject empty submissions instead of returning them
	errMsg    string
	done      bool
	cancelled bool
}

func newInputModel(title, placeholder string, numeric, required bool) inputModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Width = 40
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	ti.Focus()
	return inputModel{title: title, input: ti, numeric: numeric, required: required}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, keys.Cancel):
			m.cancelled = true
			m.done = true
			return m, tea.Quit
		case key.Matches(keyMsg, keys.Choose):
			v := m.Value()
			if v == "" && m.required {
				m.errMsg = "a value is required (esc to cancel)"
				return m, nil
			}
			if v != "" && m.numeric {
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					m.errMsg = strconv.Quote(v) + " is not a number"
					return m, nil
				}
			}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.errMsg = ""
	return m, cmd
}

// Value returns the trimmed input.
func (m inputModel) Value() string {
	return strings.TrimSpace(m.input.Value())
}

func (m inputModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString(helpLine(keys.Choose, keys.Cancel))
	b.WriteString("\n")
	return b.String()
}
