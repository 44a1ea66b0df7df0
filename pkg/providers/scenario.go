package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/ormasoftchile/scanflow/pkg/barcode"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session: the answers each prompt gives, in order.
type Scenario struct {
	Barcodes    []ScenarioAnswer `yaml:"barcodes,omitempty"     json:"barcodes,omitempty"`
	Text        []ScenarioAnswer `yaml:"text,omitempty"         json:"text,omitempty"`
	Quantities  []ScenarioAnswer `yaml:"quantities,omitempty"   json:"quantities,omitempty"`
	Selections  []string         `yaml:"selections,omitempty"   json:"selections,omitempty"`
	AddMore     []bool           `yaml:"add_more,omitempty"     json:"add_more,omitempty"`
	LoopConfirm []bool           `yaml:"loop_confirm,omitempty" json:"loop_confirm,omitempty"`
}

// ScenarioAnswer is one scripted value, or a cancellation.
type ScenarioAnswer struct {
	Text   string         `yaml:"text,omitempty"   json:"text,omitempty"`
	Format barcode.Format `yaml:"format,omitempty" json:"format,omitempty"`
	Cancel bool           `yaml:"cancel,omitempty" json:"cancel,omitempty"`
}

// UnmarshalYAML accepts either a mapping or a bare scalar ("123").
func (a *ScenarioAnswer) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.Text = node.Value
		return nil
	}
	type plain ScenarioAnswer
	return node.Decode((*plain)(a))
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Barcodes) == 0 && len(s.Text) == 0 {
		return nil, fmt.Errorf("scenario must have at least one barcode or text entry")
	}
	return &s, nil
}

// GenerateScenarioSchema produces the JSON Schema of scenario documents.
func GenerateScenarioSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Scenario{})
	s.ID = "https://github.com/ormasoftchile/scanflow/schemas/scenario-v1.json"
	s.Title = "Scan Scenario v1"
	s.Description = "Scripted answers replayed by the scenario collector"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// Alert is an alert recorded by ScenarioCollector.
type Alert struct {
	Title   string
	Message string
}

// ScenarioCollector answers every prompt from a Scenario. When a list is
// exhausted, barcode and quantity requests cancel, selections take the
// first option, and both confirmations answer no.
type ScenarioCollector struct {
	mu       sync.Mutex
	scenario Scenario
	alerts   []Alert
	prompts  int
}

// NewScenarioCollector creates a collector from a scenario.
func NewScenarioCollector(s *Scenario) *ScenarioCollector {
	sc := &ScenarioCollector{}
	if s != nil {
		sc.scenario = *s
	}
	return sc
}

// Alerts returns the alerts shown so far.
func (sc *ScenarioCollector) Alerts() []Alert {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return append([]Alert(nil), sc.alerts...)
}

// Prompts returns how many prompts (any kind) were answered.
func (sc *ScenarioCollector) Prompts() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.prompts
}

func popAnswer(list *[]ScenarioAnswer) (ScenarioAnswer, bool) {
	if len(*list) == 0 {
		return ScenarioAnswer{}, false
	}
	a := (*list)[0]
	*list = (*list)[1:]
	return a, true
}

func (sc *ScenarioCollector) RequestSingle(ctx context.Context) (barcode.Barcode, error) {
	if err := ctx.Err(); err != nil {
		return barcode.Barcode{}, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.prompts++
	a, ok := popAnswer(&sc.scenario.Barcodes)
	if !ok || a.Cancel {
		return barcode.Barcode{}, ErrCancelled
	}
	return barcode.Barcode{Text: a.Text, Format: a.Format}, nil
}

func (sc *ScenarioCollector) Subscribe(ctx context.Context) *Stream {
	return NewPullStream(ctx, sc)
}

func (sc *ScenarioCollector) PromptText(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.prompts++
	a, ok := popAnswer(&sc.scenario.Text)
	if !ok || a.Cancel {
		return "", ErrCancelled
	}
	return a.Text, nil
}

func (sc *ScenarioCollector) PromptQuantity(ctx context.Context, label, expectedType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.prompts++
	a, ok := popAnswer(&sc.scenario.Quantities)
	if !ok || a.Cancel {
		return "", ErrCancelled
	}
	return a.Text, nil
}

func (sc *ScenarioCollector) PromptSelect(ctx context.Context, label string, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.prompts++
	if len(sc.scenario.Selections) > 0 {
		choice := sc.scenario.Selections[0]
		sc.scenario.Selections = sc.scenario.Selections[1:]
		return choice, nil
	}
	if len(options) == 0 {
		return "", nil
	}
	return options[0], nil
}

func (sc *ScenarioCollector) PromptAddMore(ctx context.Context, countdown time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.prompts++
	if len(sc.scenario.AddMore) == 0 {
		return false, nil
	}
	v := sc.scenario.AddMore[0]
	sc.scenario.AddMore = sc.scenario.AddMore[1:]
	return v, nil
}

func (sc *ScenarioCollector) PromptContinue(ctx context.Context, repeats int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.prompts++
	if len(sc.scenario.LoopConfirm) == 0 {
		return false, nil
	}
	v := sc.scenario.LoopConfirm[0]
	sc.scenario.LoopConfirm = sc.scenario.LoopConfirm[1:]
	return v, nil
}

func (sc *ScenarioCollector) Alert(title, message string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.alerts = append(sc.alerts, Alert{Title: title, Message: message})
}
