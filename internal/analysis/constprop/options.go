package constprop

import (
	"fmt"

	"github.com/gnolang/cprop/internal/analysis/lattice"
	"github.com/gnolang/cprop/internal/ir"
)

// DivZeroPolicy decides what a division or remainder by a known zero folds to.
type DivZeroPolicy uint8

const (
	// DivZeroFold folds x/0 and x%0 to Constant(0).
	DivZeroFold DivZeroPolicy = iota
	// DivZeroBottom treats x/0 and x%0 as not a constant.
	DivZeroBottom
)

func (p DivZeroPolicy) String() string {
	if p == DivZeroBottom {
		return "bottom"
	}
	return "zero"
}

// ParseDivZeroPolicy accepts "zero", "bottom" or the empty string (zero).
func ParseDivZeroPolicy(s string) (DivZeroPolicy, error) {
	switch s {
	case "", "zero":
		return DivZeroFold, nil
	case "bottom":
		return DivZeroBottom, nil
	default:
		return DivZeroFold, fmt.Errorf("unknown division-by-zero policy %q (want zero or bottom)", s)
	}
}

// Options tunes a single run of the pass.
type Options struct {
	DivisionByZero DivZeroPolicy

	// OptimisticEntry starts the entry block at Top instead of Bottom.
	OptimisticEntry bool

	// Cleanup runs dead-code elimination to a fixpoint after rewriting.
	Cleanup bool

	// Trace, when set, observes every stored OUT state. The state is a copy.
	Trace func(b *ir.Block, out lattice.AbstractState)
}
