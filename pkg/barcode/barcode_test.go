package barcode

import "testing"

func TestNormalize_UPCAToEAN13(t *testing.T) {
	tests := []struct {
		name    string
		in      Barcode
		enabled []string
		want    Barcode
	}{
		{
			name:    "rewritten when ean13 enabled",
			in:      Barcode{Text: "012345678905", Format: FormatUPCA},
			enabled: []string{"EAN_13"},
			want:    Barcode{Text: "0012345678905", Format: FormatEAN13},
		},
		{
			name:    "unchanged when ean13 disabled",
			in:      Barcode{Text: "012345678905", Format: FormatUPCA},
			enabled: []string{"UPC_A", "CODE_128"},
			want:    Barcode{Text: "012345678905", Format: FormatUPCA},
		},
		{
			name:    "unchanged when format differs",
			in:      Barcode{Text: "012345678905", Format: FormatCode128},
			enabled: []string{"EAN_13"},
			want:    Barcode{Text: "012345678905", Format: FormatCode128},
		},
		{
			name:    "lenient format spelling",
			in:      Barcode{Text: "012345678905", Format: "upc-a"},
			enabled: []string{"ean13"},
			want:    Barcode{Text: "0012345678905", Format: FormatEAN13},
		},
		{
			name:    "malformed text passes through",
			in:      Barcode{Text: "12AB", Format: FormatUPCA},
			enabled: []string{"EAN_13"},
			want:    Barcode{Text: "12AB", Format: FormatUPCA},
		},
		{
			name:    "no enabled formats",
			in:      Barcode{Text: "012345678905", Format: FormatUPCA},
			enabled: nil,
			want:    Barcode{Text: "012345678905", Format: FormatUPCA},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in, tt.enabled)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalize_UPCEToUPCA(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"04252614", "042100005264"},
		{"01234531", "012300000451"},
		{"01234448", "012340000048"},
		{"01234565", "012345000065"},
	}
	for _, tt := range tests {
		got := Normalize(Barcode{Text: tt.in, Format: FormatUPCE}, []string{"UPC_A"})
		if got.Text != tt.want || got.Format != FormatUPCA {
			t.Errorf("UPC-E %s: got %+v, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_UPCENotChained(t *testing.T) {
	// Only the first matching rule fires; UPC-E does not become EAN-13.
	got := Normalize(Barcode{Text: "04252614", Format: FormatUPCE}, []string{"EAN_13"})
	if got.Text != "04252614" {
		t.Errorf("got %+v", got)
	}
}

func TestFormatKnown(t *testing.T) {
	if !Format("ean-13").Known() {
		t.Error("ean-13 should be known")
	}
	if Format("HOLOGRAM").Known() {
		t.Error("HOLOGRAM should be unknown")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Barcode
	}{
		{"12345", Barcode{Text: "12345"}},
		{" UPC_A:012345678905 ", Barcode{Text: "012345678905", Format: FormatUPCA}},
		{"ean13:400", Barcode{Text: "400", Format: FormatEAN13}},
		{"http://example.com", Barcode{Text: "http://example.com"}},
	}
	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
