// Package tui implements the interactive terminal prompts a scan suspends
// on: option selection, quantity and manual barcode entry, the add-more
// countdown and the repeated-value confirmation. Each prompt runs as a
// short-lived Bubble Tea program rendered inline.
package tui

import "github.com/charmbracelet/lipgloss"

// Glyphs convey meaning without relying on color alone.
const (
	GlyphCursor  = "▸"
	GlyphOK      = "✓"
	GlyphFailed  = "✗"
	GlyphWarning = "⚠"
	GlyphBarcode = "▮"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

// --- Prompt styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	optionStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	countdownStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)

// --- Result styles ---

var (
	resultBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	okStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRed).
			Foreground(colorRed).
			Padding(0, 1)
)
