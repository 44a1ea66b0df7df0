// Package eval evaluates profile expressions and {{name}} interpolations
// against an explicit variable table.
//
// Expressions are compiled by expr-lang and run against the map passed in;
// nothing else is reachable from inside an expression.
package eval

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrEvaluation is wrapped by every compile or runtime failure.
var ErrEvaluation = errors.New("evaluation failed")

// DefaultCacheSize bounds the number of compiled programs kept per Evaluator.
const DefaultCacheSize = 256

var (
	placeholderRe = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)
	identRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Evaluator compiles and runs expressions, memoizing compiled programs.
// It is safe for concurrent use.
type Evaluator struct {
	programs *lru.Cache[string, *vm.Program]
}

// New creates an Evaluator with a program cache of the given size.
func New(cacheSize int) *Evaluator {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	c, err := lru.New[string, *vm.Program](cacheSize)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Evaluator{programs: c}
}

var std = New(DefaultCacheSize)

// Evaluate runs expression against vars using the package evaluator.
func Evaluate(expression string, vars map[string]any) (any, error) {
	return std.Evaluate(expression, vars)
}

// EvalBool runs a condition using the package evaluator.
func EvalBool(expression string, vars map[string]any) (bool, error) {
	return std.EvalBool(expression, vars)
}

// Interpolate resolves {{name}} placeholders using the package evaluator.
func Interpolate(tmpl string, vars map[string]any) string {
	return std.Interpolate(tmpl, vars)
}

// Check compiles expression without running it.
func Check(expression string) error {
	_, err := std.compile(expression)
	return err
}

// Evaluate runs expression against vars and returns its value.
func (e *Evaluator) Evaluate(expression string, vars map[string]any) (any, error) {
	program, err := e.compile(expression)
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(program, bindings(vars))
	if err != nil {
		return nil, fmt.Errorf("%w: eval %q: %v", ErrEvaluation, expression, err)
	}
	return out, nil
}

// EvalBool evaluates a condition. A result that is not a bool is an error.
func (e *Evaluator) EvalBool(expression string, vars map[string]any) (bool, error) {
	out, err := e.Evaluate(expression, vars)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: condition %q did not return bool (got %T: %v)", ErrEvaluation, expression, out, out)
	}
	return b, nil
}

// Interpolate replaces every {{...}} placeholder in tmpl. A bare identifier
// is looked up in vars; anything else is evaluated as an expression. Missing
// names and failed expressions render as the empty string.
func (e *Evaluator) Interpolate(tmpl string, vars map[string]any) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		inner := strings.TrimSpace(placeholderRe.FindStringSubmatch(m)[1])
		if inner == "" {
			return ""
		}
		if identRe.MatchString(inner) {
			return Format(vars[inner])
		}
		v, err := e.Evaluate(inner, vars)
		if err != nil {
			return ""
		}
		return Format(v)
	})
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	src := normalize(expression)
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrEvaluation)
	}
	if p, ok := e.programs.Get(src); ok {
		return p, nil
	}
	p, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: compile %q: %v", ErrEvaluation, expression, err)
	}
	e.programs.Add(src, p)
	return p, nil
}

// normalize maps JavaScript strict equality onto expr operators. Quoted
// string literals are copied untouched.
func normalize(s string) string {
	if !strings.Contains(s, "==") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			switch {
			case c == '\\' && quote != '`' && i+1 < len(s):
				i++
				b.WriteByte(s[i])
			case c == quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case strings.HasPrefix(s[i:], "!=="):
			b.WriteString("!=")
			i += 2
			continue
		case strings.HasPrefix(s[i:], "==="):
			b.WriteString("==")
			i += 2
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// bindings copies vars into the table an expression runs against, adding
// the null and undefined aliases for nil.
func bindings(vars map[string]any) map[string]any {
	env := make(map[string]any, len(vars)+2)
	env["null"] = nil
	env["undefined"] = nil
	for k, v := range vars {
		env[k] = v
	}
	return env
}

// Format renders a value the way it appears in resolved output.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Format(item)
		}
		return strings.Join(parts, ",")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// IsEmpty reports whether a value renders as empty.
func IsEmpty(v any) bool {
	return Format(v) == ""
}
