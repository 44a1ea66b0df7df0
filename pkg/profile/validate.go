package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/ormasoftchile/scanflow/pkg/barcode"
	"github.com/ormasoftchile/scanflow/pkg/eval"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // e.g. "blocks[3].value"
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether errs contains at least one error-severity entry.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidateFile performs the full validation pipeline on a profile file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (block rules)
func ValidateFile(path string) (*Profile, []*ValidationError) {
	p, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return p, Validate(p)
}

// Validate runs the semantic and domain phases on an already decoded profile.
func Validate(p *Profile) []*ValidationError {
	var errs []*ValidationError
	errs = append(errs, validateSemantic(p)...)
	errs = append(errs, ValidateDomain(p)...)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateSemantic(p *Profile) []*ValidationError {
	semErr := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		}}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return semErr("marshal for schema validation: %v", err)
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semErr("generate schema: %v", err)
	}
	schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return semErr("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("profile-v1.json", schemaDoc); err != nil {
		return semErr("add schema resource: %v", err)
	}
	sch, err := c.Compile("profile-v1.json")
	if err != nil {
		return semErr("compile schema: %v", err)
	}

	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return semErr("unmarshal document: %v", err)
	}
	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semErr("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain checks the rules JSON Schema cannot express: If/EndIf
// balance, device variable names, expressions that must compile.
func ValidateDomain(p *Profile) []*ValidationError {
	var errs []*ValidationError
	add := func(path, severity, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	if p.APIVersion != "profile/v1" {
		add("apiVersion", "error", "unrecognized apiVersion %q, expected %q", p.APIVersion, "profile/v1")
	}
	if strings.TrimSpace(p.Name) == "" {
		add("name", "error", "name is required")
	}
	if len(p.Blocks) == 0 {
		add("blocks", "error", "profile has no blocks")
	}

	for i, f := range p.EnabledFormats {
		if !barcode.Format(f).Known() {
			add(fmt.Sprintf("enabled_formats[%d]", i), "warning", "unknown barcode format %q", f)
		}
	}

	depth := 0
	hasBarcode := false
	for i, b := range p.Blocks {
		path := fmt.Sprintf("blocks[%d]", i)
		switch b.Kind {
		case KindIf:
			depth++
			if strings.TrimSpace(b.Value) == "" {
				add(path+".value", "error", "if block has an empty condition")
			} else if err := eval.Check(b.Value); err != nil {
				add(path+".value", "error", "condition does not compile: %v", err)
			}
		case KindEndIf:
			depth--
			if depth < 0 {
				add(path, "error", "endif without matching if")
				depth = 0
			}
		case KindFunction:
			if strings.TrimSpace(b.Value) == "" {
				add(path+".value", "warning", "function block has an empty expression")
			} else if err := eval.Check(b.Value); err != nil {
				// Function failures degrade to an empty value at runtime.
				add(path+".value", "warning", "expression does not compile: %v", err)
			}
		case KindDeviceVariable:
			if !slices.Contains(DeviceVariables, b.Value) {
				add(path+".value", "error", "unknown device variable %q (expected one of %s)", b.Value, strings.Join(DeviceVariables, ", "))
			}
		case KindSelectOption:
			if strings.TrimSpace(b.Value) == "" {
				add(path+".value", "error", "select_option block has no options")
			}
		case KindBarcode:
			hasBarcode = true
		case KindLiteral, KindDelay, KindRunCommand, KindHTTPCall:
		default:
			add(path+".kind", "error", "unknown block kind %q", b.Kind)
		}
	}
	if depth > 0 {
		add("blocks", "error", "%d if block(s) without matching endif", depth)
	}
	if len(p.Blocks) > 0 && !hasBarcode {
		add("blocks", "warning", "profile has no barcode block")
	}
	return errs
}
