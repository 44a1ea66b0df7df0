// Package diagram renders a profile's block list as a Mermaid flowchart or
// an ASCII box diagram, with If/EndIf ranges shown as branches.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/ormasoftchile/scanflow/pkg/profile"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram string from a profile.
func Generate(p *profile.Profile, format Format) (string, error) {
	if p == nil {
		return "", fmt.Errorf("nil profile")
	}
	nodes, err := buildTree(p.Blocks)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(nodes), nil
	case FormatASCII:
		return generateASCII(p.Name, nodes), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// node is one block; an If node holds the blocks up to its EndIf.
type node struct {
	index    int
	block    profile.Block
	children []node
}

func buildTree(blocks []profile.Block) ([]node, error) {
	nodes, _, err := buildRange(blocks, 0, len(blocks))
	return nodes, err
}

func buildRange(blocks []profile.Block, from, to int) ([]node, int, error) {
	var out []node
	i := from
	for i < to {
		b := blocks[i]
		switch b.Kind {
		case profile.KindIf:
			end, err := profile.MatchEndIf(blocks, i)
			if err != nil {
				return nil, i, err
			}
			children, _, err := buildRange(blocks, i+1, end)
			if err != nil {
				return nil, i, err
			}
			out = append(out, node{index: i, block: b, children: children})
			i = end + 1
		case profile.KindEndIf:
			return nil, i, fmt.Errorf("block %d: %w", i, profile.ErrUnmatchedEndIf)
		default:
			out = append(out, node{index: i, block: b})
			i++
		}
	}
	return out, i, nil
}

// --- Mermaid flowchart ---

func generateMermaid(nodes []node) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	b.WriteString("    START([Scan]) --> " + firstID(nodes, "RESULT") + "\n")
	writeMermaid(&b, nodes, "RESULT")
	b.WriteString("    RESULT([Result])\n")
	return b.String()
}

func writeMermaid(b *strings.Builder, nodes []node, next string) {
	for i, n := range nodes {
		succ := next
		if i < len(nodes)-1 {
			succ = nodeID(nodes[i+1])
		}
		id := nodeID(n)
		b.WriteString("    " + nodeDefinition(n) + "\n")
		if n.block.Kind == profile.KindIf {
			b.WriteString(fmt.Sprintf("    %s -->|true| %s\n", id, firstID(n.children, succ)))
			b.WriteString(fmt.Sprintf("    %s -->|false| %s\n", id, succ))
			writeMermaid(b, n.children, succ)
			continue
		}
		b.WriteString(fmt.Sprintf("    %s --> %s\n", id, succ))
		if n.block.Kind == profile.KindBarcode {
			b.WriteString(fmt.Sprintf("    style %s fill:#1a3a4a,stroke:#0af\n", id))
		}
	}
}

func firstID(nodes []node, fallback string) string {
	if len(nodes) == 0 {
		return fallback
	}
	return nodeID(nodes[0])
}

func nodeID(n node) string {
	return fmt.Sprintf("b%d", n.index)
}

func nodeDefinition(n node) string {
	id := nodeID(n)
	text := escMermaid(blockText(n.block))
	switch n.block.Kind {
	case profile.KindIf:
		return fmt.Sprintf(`%s{"%s"}`, id, text)
	case profile.KindBarcode, profile.KindSelectOption:
		return fmt.Sprintf(`%s[/"%s"/]`, id, text)
	case profile.KindDelay, profile.KindRunCommand, profile.KindHTTPCall:
		return fmt.Sprintf(`%s[["%s"]]`, id, text)
	default:
		return fmt.Sprintf(`%s["%s"]`, id, text)
	}
}

// --- ASCII ---

func generateASCII(name string, nodes []node) string {
	var b strings.Builder
	if name == "" {
		name = "Profile"
	}
	if len(nodes) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	// Uniform box width so every box and connector aligns.
	const indent = 8
	boxWidth := computeUniformBoxWidth(nodes, name)
	connCol := indent + 1 + boxWidth/2 // +1 for the left border character
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)

	headerText := centerPad(name, boxWidth)
	mid := boxWidth / 2
	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + headerText + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")
	b.WriteString(connPad + "│\n")

	for i, n := range nodes {
		if n.block.Kind == profile.KindIf {
			writeASCIIBranch(&b, n, connCol)
		} else {
			writeASCIIBox(&b, n, indent, boxWidth)
		}
		if i < len(nodes)-1 {
			b.WriteString(connPad + "│\n")
		}
	}
	return b.String()
}

func writeASCIIBox(b *strings.Builder, n node, indent, boxWidth int) {
	content := " " + blockText(n.block) + " "
	contentWidth := runewidth.StringWidth(content)

	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2
	b.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
	b.WriteString(pad + "│" + content + strings.Repeat(" ", boxWidth-contentWidth) + "│\n")
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

// writeASCIIBranch draws an If range as a diamond-topped box listing its
// content, nested branches indented one level deeper.
func writeASCIIBranch(b *strings.Builder, n node, connCol int) {
	lines := branchLines(n, 0)

	// Branch box width = widest content line, minimum 9 (for the diamond)
	brWidth := 9
	for _, l := range lines {
		if w := runewidth.StringWidth(l); w > brWidth {
			brWidth = w
		}
	}
	// Odd width so ◇ and ┬ land at center
	if brWidth%2 == 0 {
		brWidth++
	}
	brHalf := brWidth / 2

	left := connCol - brHalf - 1
	if left < 0 {
		left = 0
	}
	brPad := strings.Repeat(" ", left)
	b.WriteString(brPad + "┌" + strings.Repeat("─", brHalf) + "◇" + strings.Repeat("─", brHalf) + "┐\n")
	for _, l := range lines {
		lw := runewidth.StringWidth(l)
		b.WriteString(brPad + "│" + l + strings.Repeat(" ", brWidth-lw) + "│\n")
	}
	b.WriteString(brPad + "└" + strings.Repeat("─", brHalf) + "┬" + strings.Repeat("─", brHalf) + "┘\n")
}

func branchLines(n node, depth int) []string {
	prefix := strings.Repeat("  ", depth)
	lines := []string{" " + prefix + blockText(n.block) + " "}
	if len(n.children) == 0 {
		lines = append(lines, " "+prefix+"  (empty) ")
	}
	for _, c := range n.children {
		if c.block.Kind == profile.KindIf {
			lines = append(lines, branchLines(c, depth+1)...)
			continue
		}
		lines = append(lines, " "+prefix+"  "+blockText(c.block)+" ")
	}
	return lines
}

// computeUniformBoxWidth returns the widest interior width needed across
// all top-level boxes and the header name.
func computeUniformBoxWidth(nodes []node, name string) int {
	w := 22
	if nw := runewidth.StringWidth(name) + 4; nw > w {
		w = nw
	}
	for _, n := range nodes {
		if n.block.Kind == profile.KindIf {
			continue
		}
		if cw := runewidth.StringWidth(" " + blockText(n.block) + " "); cw > w {
			w = cw
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}

func blockIcon(k profile.Kind) string {
	switch k {
	case profile.KindLiteral:
		return "¶"
	case profile.KindDeviceVariable:
		return "⚙"
	case profile.KindSelectOption:
		return "☰"
	case profile.KindFunction:
		return "ƒ"
	case profile.KindBarcode:
		return "▮"
	case profile.KindDelay:
		return "⏱"
	case profile.KindRunCommand:
		return "⚡"
	case profile.KindHTTPCall:
		return "⇄"
	case profile.KindIf:
		return "◇"
	default:
		return "○"
	}
}

func blockText(b profile.Block) string {
	icon := blockIcon(b.Kind)
	switch {
	case b.Kind == profile.KindIf:
		return icon + " if " + truncate(b.Value, 40)
	case b.Label != "":
		return icon + " " + b.Label
	case b.Kind == profile.KindBarcode:
		return icon + " barcode"
	case b.Value == "":
		return icon + " " + string(b.Kind)
	default:
		return icon + " " + truncate(b.Value, 40)
	}
}

// --- string helpers ---

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
