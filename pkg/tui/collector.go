package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ormasoftchile/scanflow/pkg/providers"
)

// Collector answers engine prompts with inline Bubble Tea programs. Only
// one prompt runs at a time.
type Collector struct {
	In  io.Reader // nil means stdin
	Out io.Writer // nil means stderr

	mu sync.Mutex
}

// NewCollector creates a terminal collector on stdin/stderr.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) out() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stderr
}

// runProgram runs one prompt to completion and returns its final model.
func runProgram[M tea.Model](ctx context.Context, c *Collector, m M) (M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(c.out())}
	if c.In != nil {
		opts = append(opts, tea.WithInput(c.In))
	}
	final, err := tea.NewProgram(m, opts...).Run()
	if ctx.Err() != nil {
		return m, ctx.Err()
	}
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return m, providers.ErrCancelled
		}
		return m, fmt.Errorf("run prompt: %w", err)
	}
	return final.(M), nil
}

func (c *Collector) PromptText(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		prompt = "Scan or type a barcode"
	}
	m, err := runProgram(ctx, c, newInputModel(prompt, "FORMAT:text or text", false, false))
	if err != nil {
		return "", err
	}
	if m.cancelled {
		return "", providers.ErrCancelled
	}
	return m.Value(), nil
}

func (c *Collector) PromptQuantity(ctx context.Context, label, expectedType string) (string, error) {
	if label == "" {
		label = "Quantity"
	}
	m, err := runProgram(ctx, c, newInputModel(label, expectedType, expectedType == "number", true))
	if err != nil {
		return "", err
	}
	if m.cancelled {
		return "", providers.ErrCancelled
	}
	return m.Value(), nil
}

func (c *Collector) PromptSelect(ctx context.Context, label string, options []string) (string, error) {
	if len(options) == 0 {
		return "", nil
	}
	m, err := runProgram(ctx, c, newSelectModel(label, options))
	if err != nil {
		if errors.Is(err, providers.ErrCancelled) {
			return options[0], nil
		}
		return "", err
	}
	return m.Value(), nil
}

func (c *Collector) PromptAddMore(ctx context.Context, countdown time.Duration) (bool, error) {
	m, err := runProgram(ctx, c, newConfirmModel("Add more?", true, countdown))
	if err != nil {
		if errors.Is(err, providers.ErrCancelled) {
			return false, nil
		}
		return false, err
	}
	return m.value, nil
}

func (c *Collector) PromptContinue(ctx context.Context, repeats int) (bool, error) {
	q := fmt.Sprintf("The same value was produced %d times in a row. Keep scanning?", repeats)
	m, err := runProgram(ctx, c, newConfirmModel(q, false, 0))
	if err != nil {
		if errors.Is(err, providers.ErrCancelled) {
			return false, nil
		}
		return false, err
	}
	return m.value, nil
}

func (c *Collector) Alert(title, message string) {
	fmt.Fprintln(c.out(), alertStyle.Render(GlyphWarning+" "+title+"\n"+message))
}

// BarcodeSource reads typed barcodes through the collector's text prompt.
// An empty entry cancels.
func (c *Collector) BarcodeSource() *providers.ManualBarcodeSource {
	return &providers.ManualBarcodeSource{Input: c, Prompt: GlyphBarcode + " Scan or type a barcode"}
}

var _ providers.Collector = (*Collector)(nil)
