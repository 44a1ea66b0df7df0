// Package barcode holds decoded barcode values and the format-specific text
// rewrite rules applied wherever a barcode enters the engine.
package barcode

import "strings"

// Format is a barcode symbology name as reported by the decoder.
type Format string

const (
	FormatEAN13      Format = "EAN_13"
	FormatEAN8       Format = "EAN_8"
	FormatUPCA       Format = "UPC_A"
	FormatUPCE       Format = "UPC_E"
	FormatCode39     Format = "CODE_39"
	FormatCode93     Format = "CODE_93"
	FormatCode128    Format = "CODE_128"
	FormatCodabar    Format = "CODABAR"
	FormatITF        Format = "ITF"
	FormatQRCode     Format = "QR_CODE"
	FormatDataMatrix Format = "DATA_MATRIX"
	FormatPDF417     Format = "PDF_417"
	FormatAztec      Format = "AZTEC"
)

var known = map[Format]bool{
	FormatEAN13: true, FormatEAN8: true, FormatUPCA: true, FormatUPCE: true,
	FormatCode39: true, FormatCode93: true, FormatCode128: true, FormatCodabar: true,
	FormatITF: true, FormatQRCode: true, FormatDataMatrix: true, FormatPDF417: true,
	FormatAztec: true,
}

// Known reports whether f is a recognised symbology.
func (f Format) Known() bool {
	return known[normalizeFormat(f)]
}

// normalizeFormat accepts "ean13", "EAN-13" and "EAN_13" alike.
func normalizeFormat(f Format) Format {
	s := strings.ToUpper(strings.TrimSpace(string(f)))
	s = strings.ReplaceAll(s, "-", "_")
	switch s {
	case "EAN13":
		return FormatEAN13
	case "EAN8":
		return FormatEAN8
	case "UPCA":
		return FormatUPCA
	case "UPCE":
		return FormatUPCE
	case "CODE39":
		return FormatCode39
	case "CODE93":
		return FormatCode93
	case "CODE128":
		return FormatCode128
	case "QR", "QRCODE":
		return FormatQRCode
	case "DATAMATRIX":
		return FormatDataMatrix
	case "PDF417":
		return FormatPDF417
	}
	return Format(s)
}

// Barcode is one decoded value.
type Barcode struct {
	Text   string `json:"text"   yaml:"text"`
	Format Format `json:"format" yaml:"format,omitempty"`
}

// Rule rewrites the text of a narrower symbology into a wider one. It
// applies only when the detected format is From and To is enabled.
type Rule struct {
	From    Format
	To      Format
	Rewrite func(text string) (string, bool)
}

// DefaultRules is the rewrite table applied by Normalize.
var DefaultRules = []Rule{
	{From: FormatUPCA, To: FormatEAN13, Rewrite: upcAToEAN13},
	{From: FormatUPCE, To: FormatUPCA, Rewrite: upcEToUPCA},
}

// Normalize applies the first matching rule in DefaultRules.
func Normalize(b Barcode, enabled []string) Barcode {
	return Apply(DefaultRules, b, enabled)
}

// Apply runs rules against b. A rule fires if and only if the detected
// format matches its From and its To format is enabled; otherwise the text
// passes through unchanged. The reported format follows the rewrite.
func Apply(rules []Rule, b Barcode, enabled []string) Barcode {
	from := normalizeFormat(b.Format)
	on := make(map[Format]bool, len(enabled))
	for _, f := range enabled {
		on[normalizeFormat(Format(f))] = true
	}
	for _, r := range rules {
		if from != r.From || !on[r.To] {
			continue
		}
		text, ok := r.Rewrite(b.Text)
		if !ok {
			continue
		}
		return Barcode{Text: text, Format: r.To}
	}
	return b
}

func upcAToEAN13(text string) (string, bool) {
	if len(text) != 12 || !digits(text) {
		return text, false
	}
	return "0" + text, true
}

// upcEToUPCA expands a zero-suppressed 8-digit UPC-E (number system, six
// data digits, check digit) into its 12-digit UPC-A form.
func upcEToUPCA(text string) (string, bool) {
	if len(text) != 8 || !digits(text) {
		return text, false
	}
	ns, d, check := text[0:1], text[1:7], text[7:8]
	if ns != "0" && ns != "1" {
		return text, false
	}
	var body string
	switch d[5] {
	case '0', '1', '2':
		body = d[0:2] + d[5:6] + "0000" + d[2:5]
	case '3':
		body = d[0:3] + "00000" + d[3:5]
	case '4':
		body = d[0:4] + "00000" + d[4:5]
	default:
		body = d[0:5] + "0000" + d[5:6]
	}
	return ns + body + check, true
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Parse reads a manually entered barcode. An optional "FORMAT:" prefix
// naming a known symbology sets the format ("UPC_A:012345678905").
func Parse(s string) Barcode {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ":"); i > 0 {
		if f := normalizeFormat(Format(s[:i])); known[f] {
			return Barcode{Text: s[i+1:], Format: f}
		}
	}
	return Barcode{Text: s}
}
