package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/ormasoftchile/scanflow/pkg/barcode"
)

// ConsoleCollector prompts the user on the terminal via readline.
// A single reader goroutine owns the terminal; prompts wait for its next
// line, so at most one line is pending at any time.
type ConsoleCollector struct {
	rl    *readline.Instance
	once  sync.Once
	lines chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewConsoleCollector creates a collector reading from the terminal.
func NewConsoleCollector() (*ConsoleCollector, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	return &ConsoleCollector{rl: rl, lines: make(chan lineResult)}, nil
}

// Close releases the terminal.
func (c *ConsoleCollector) Close() error {
	return c.rl.Close()
}

func (c *ConsoleCollector) startReader() {
	go func() {
		defer close(c.lines)
		for {
			line, err := c.rl.Readline()
			c.lines <- lineResult{line: line, err: err}
			if err != nil && !errors.Is(err, readline.ErrInterrupt) {
				return
			}
		}
	}()
}

func (c *ConsoleCollector) readLine(ctx context.Context, prompt string) (string, error) {
	c.once.Do(c.startReader)
	c.rl.SetPrompt(prompt)
	c.rl.Refresh()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-c.lines:
		if !ok {
			return "", ErrCancelled
		}
		if r.err != nil {
			if errors.Is(r.err, readline.ErrInterrupt) || errors.Is(r.err, io.EOF) {
				return "", ErrCancelled
			}
			return "", fmt.Errorf("read line: %w", r.err)
		}
		return strings.TrimSpace(r.line), nil
	}
}

func (c *ConsoleCollector) PromptText(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		prompt = "scan> "
	}
	return c.readLine(ctx, prompt)
}

func (c *ConsoleCollector) PromptQuantity(ctx context.Context, label, expectedType string) (string, error) {
	if label == "" {
		label = "Quantity"
	}
	out := c.rl.Stdout()
	for {
		text, err := c.readLine(ctx, fmt.Sprintf("%s (empty to cancel): ", label))
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", ErrCancelled
		}
		if expectedType == "number" {
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				fmt.Fprintf(out, "   %q is not a number\n", text)
				continue
			}
		}
		return text, nil
	}
}

func (c *ConsoleCollector) PromptSelect(ctx context.Context, label string, options []string) (string, error) {
	if len(options) == 0 {
		return "", nil
	}
	out := c.rl.Stdout()
	if label != "" {
		fmt.Fprintf(out, "\n%s\n", label)
	}
	for i, opt := range options {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Fprintf(out, "  %s %d) %s\n", marker, i+1, opt)
	}
	for {
		text, err := c.readLine(ctx, "select [1]: ")
		if errors.Is(err, ErrCancelled) || (err == nil && text == "") {
			return options[0], nil
		}
		if err != nil {
			return "", err
		}
		n, convErr := strconv.Atoi(text)
		if convErr == nil && n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		for _, opt := range options {
			if strings.EqualFold(opt, text) {
				return opt, nil
			}
		}
		fmt.Fprintf(out, "   choose 1-%d\n", len(options))
	}
}

func (c *ConsoleCollector) PromptAddMore(ctx context.Context, countdown time.Duration) (bool, error) {
	prompt := "Add more? [Y/n]: "
	if countdown > 0 {
		prompt = fmt.Sprintf("Add more? [Y/n] (yes in %s): ", countdown.Round(time.Second))
	}
	text, err := c.readLine(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return false, nil
		}
		return false, err
	}
	return yes(text, true), nil
}

func (c *ConsoleCollector) PromptContinue(ctx context.Context, repeats int) (bool, error) {
	fmt.Fprintf(c.rl.Stdout(), "\nThe same value was produced %d times in a row.\n", repeats)
	text, err := c.readLine(ctx, "Keep scanning? [y/N]: ")
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return false, nil
		}
		return false, err
	}
	return yes(text, false), nil
}

func (c *ConsoleCollector) Alert(title, message string) {
	fmt.Fprintf(c.rl.Stderr(), "\n⚠ %s: %s\n", title, message)
}

func yes(answer string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return def
	case "y", "yes":
		return true
	}
	return false
}

// ManualBarcodeSource turns typed lines into barcodes. An empty line
// cancels.
type ManualBarcodeSource struct {
	Input  TextInput
	Prompt string
}

func (m *ManualBarcodeSource) RequestSingle(ctx context.Context) (barcode.Barcode, error) {
	text, err := m.Input.PromptText(ctx, m.Prompt)
	if err != nil {
		return barcode.Barcode{}, err
	}
	if text == "" {
		return barcode.Barcode{}, ErrCancelled
	}
	return barcode.Parse(text), nil
}

func (m *ManualBarcodeSource) Subscribe(ctx context.Context) *Stream {
	return NewPullStream(ctx, m)
}

// DryRunCollector returns placeholder values without prompting. It yields
// Barcodes placeholder barcodes (at least one) and then cancels.
type DryRunCollector struct {
	Barcodes int

	mu sync.Mutex
	n  int
}

func (d *DryRunCollector) RequestSingle(ctx context.Context) (barcode.Barcode, error) {
	if err := ctx.Err(); err != nil {
		return barcode.Barcode{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	limit := d.Barcodes
	if limit < 1 {
		limit = 1
	}
	if d.n >= limit {
		return barcode.Barcode{}, ErrCancelled
	}
	d.n++
	return barcode.Barcode{Text: fmt.Sprintf("DRYRUN-%04d", d.n), Format: barcode.FormatCode128}, nil
}

func (d *DryRunCollector) Subscribe(ctx context.Context) *Stream {
	return NewPullStream(ctx, d)
}

func (d *DryRunCollector) PromptText(ctx context.Context, prompt string) (string, error) {
	return "<dry-run>", nil
}

func (d *DryRunCollector) PromptQuantity(ctx context.Context, label, expectedType string) (string, error) {
	return "1", nil
}

func (d *DryRunCollector) PromptSelect(ctx context.Context, label string, options []string) (string, error) {
	if len(options) == 0 {
		return "", nil
	}
	return options[0], nil
}

func (d *DryRunCollector) PromptAddMore(ctx context.Context, countdown time.Duration) (bool, error) {
	return true, nil
}

func (d *DryRunCollector) PromptContinue(ctx context.Context, repeats int) (bool, error) {
	return false, nil
}

func (d *DryRunCollector) Alert(title, message string) {}
