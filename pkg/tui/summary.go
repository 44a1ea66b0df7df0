package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ormasoftchile/scanflow/pkg/interp"
	"github.com/ormasoftchile/scanflow/pkg/scanloop"
)

// RenderResult renders one scan result as a bordered card.
func RenderResult(n int, m scanloop.ScanModel) string {
	var b strings.Builder
	b.WriteString(okStyle.Render(fmt.Sprintf("%s scan %d", GlyphOK, n)))
	b.WriteString("\n")
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)))
		b.WriteString(" ")
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	row("display", m.DisplayValue)
	row("barcodes", m.LegacyText)
	if m.Quantity != nil {
		row("quantity", *m.Quantity)
	}
	row("id", fmt.Sprintf("%d", m.ID))
	return resultBorder.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderSummary renders the end-of-sequence line.
func RenderSummary(results int, err error, elapsed time.Duration) string {
	status := okStyle.Render(GlyphOK + " complete")
	switch {
	case err == nil:
	case scanloop.Clean(err):
		status = hintStyle.Render("■ " + interp.Reason(err))
	default:
		status = errorStyle.Render(GlyphFailed + " " + err.Error())
	}
	return fmt.Sprintf("%s  %s  %s",
		status,
		valueStyle.Render(fmt.Sprintf("%d result(s)", results)),
		hintStyle.Render(elapsed.Round(time.Millisecond).String()))
}
