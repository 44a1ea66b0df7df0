package profile

import (
	"errors"
	"fmt"
)

// ErrUnmatchedIf is returned when an If block has no matching EndIf.
var ErrUnmatchedIf = errors.New("unmatched if")

// ErrUnmatchedEndIf is returned when an EndIf has no opening If.
var ErrUnmatchedEndIf = errors.New("unmatched endif")

// Compiled is a profile together with its derived flags. The flags are
// computed once and the block list is never mutated afterwards.
type Compiled struct {
	Profile              *Profile
	HasBlockingComponent bool
	HasQuantityComponent bool
}

// Compile checks If/EndIf balance and computes the derived flags.
func Compile(p *Profile) (*Compiled, error) {
	if p == nil {
		return nil, fmt.Errorf("compile profile: nil profile")
	}
	if err := CheckBalance(p.Blocks); err != nil {
		return nil, fmt.Errorf("compile profile %q: %w", p.Name, err)
	}
	c := &Compiled{Profile: p.Clone()}
	for _, b := range p.Blocks {
		if b.IsBlocking() {
			c.HasBlockingComponent = true
		}
		if b.IsQuantity() {
			c.HasQuantityComponent = true
		}
	}
	return c, nil
}

// Blocks returns a fresh working copy of the compiled block list.
func (c *Compiled) Blocks() []Block {
	return CloneBlocks(c.Profile.Blocks)
}

// MatchEndIf returns the index of the EndIf matching the If at index start.
// Nested If/EndIf pairs are skipped by depth tracking.
func MatchEndIf(blocks []Block, start int) (int, error) {
	if start < 0 || start >= len(blocks) || blocks[start].Kind != KindIf {
		return -1, fmt.Errorf("block %d is not an if", start)
	}
	depth := 0
	for i := start; i < len(blocks); i++ {
		switch blocks[i].Kind {
		case KindIf:
			depth++
		case KindEndIf:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("block %d: %w", start, ErrUnmatchedIf)
}

// CheckBalance verifies that every If has exactly one matching EndIf.
func CheckBalance(blocks []Block) error {
	var open []int
	for i, b := range blocks {
		switch b.Kind {
		case KindIf:
			open = append(open, i)
		case KindEndIf:
			if len(open) == 0 {
				return fmt.Errorf("block %d: %w", i, ErrUnmatchedEndIf)
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("block %d: %w", open[len(open)-1], ErrUnmatchedIf)
	}
	return nil
}
