// Package profile defines the Go struct types for output profiles and
// provides strict YAML parsing.
package profile

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind is the type of a single block.
type Kind string

const (
	KindLiteral        Kind = "literal"
	KindDeviceVariable Kind = "device_variable"
	KindSelectOption   Kind = "select_option"
	KindFunction       Kind = "function"
	KindBarcode        Kind = "barcode"
	KindDelay          Kind = "delay"
	KindRunCommand     Kind = "run_command"
	KindHTTPCall       Kind = "http_call"
	KindIf             Kind = "if"
	KindEndIf          Kind = "endif"
)

// Kinds lists every block kind in declaration order.
var Kinds = []Kind{
	KindLiteral, KindDeviceVariable, KindSelectOption, KindFunction, KindBarcode,
	KindDelay, KindRunCommand, KindHTTPCall, KindIf, KindEndIf,
}

// Device variable names accepted in a DeviceVariable block value.
const (
	VarDeviceName      = "device_name"
	VarTimestamp       = "timestamp"
	VarDate            = "date"
	VarTime            = "time"
	VarDateTime        = "date_time"
	VarScanSessionName = "scan_session_name"
	VarQuantity        = "quantity"
)

// DeviceVariables lists the valid DeviceVariable values.
var DeviceVariables = []string{
	VarDeviceName, VarTimestamp, VarDate, VarTime, VarDateTime, VarScanSessionName, VarQuantity,
}

// Quantity input types.
const (
	QuantityNumber = "number"
	QuantityText   = "text"
)

// Profile is the top-level document: an ordered template of blocks that
// defines the shape of one scan.
type Profile struct {
	APIVersion     string   `yaml:"apiVersion"                json:"apiVersion"                jsonschema:"required,enum=profile/v1"`
	Name           string   `yaml:"name"                      json:"name"                      jsonschema:"required"`
	Description    string   `yaml:"description,omitempty"     json:"description,omitempty"`
	EnabledFormats []string `yaml:"enabled_formats,omitempty" json:"enabled_formats,omitempty"`
	QuantityType   string   `yaml:"quantity_type,omitempty"   json:"quantity_type,omitempty"   jsonschema:"enum=number,enum=text"`
	Blocks         []Block  `yaml:"blocks"                    json:"blocks"                    jsonschema:"required,minItems=1"`
}

// Block is a single typed step in a profile. Value holds a literal, a
// variable name or an expression depending on Kind.
type Block struct {
	Kind  Kind   `yaml:"kind"            json:"kind"            jsonschema:"required,enum=literal,enum=device_variable,enum=select_option,enum=function,enum=barcode,enum=delay,enum=run_command,enum=http_call,enum=if,enum=endif"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// IsOutput reports whether the block contributes to the rendered output.
// Delay, RunCommand and HttpCall are side-effect markers; If/EndIf are
// control flow.
func (b Block) IsOutput() bool {
	switch b.Kind {
	case KindLiteral, KindDeviceVariable, KindSelectOption, KindFunction, KindBarcode:
		return true
	}
	return false
}

// IsBlocking reports whether executing the block requires a user prompt
// between acquisitions.
func (b Block) IsBlocking() bool {
	return b.Kind == KindSelectOption || b.IsQuantity()
}

// IsQuantity reports whether the block acquires a quantity.
func (b Block) IsQuantity() bool {
	return b.Kind == KindDeviceVariable && b.Value == VarQuantity
}

// Clone returns a structural copy of the profile. Blocks are values, so
// copying the slices is a deep copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.EnabledFormats = append([]string(nil), p.EnabledFormats...)
	c.Blocks = CloneBlocks(p.Blocks)
	return &c
}

// CloneBlocks copies a block slice.
func CloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	copy(out, blocks)
	return out
}

// LoadFile reads and parses a profile YAML file with strict unknown-field
// rejection.
func LoadFile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a profile from an io.Reader with strict unknown-field rejection.
func Load(r io.Reader) (*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}
