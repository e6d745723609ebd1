package constprop

import (
	"github.com/gnolang/cprop/internal/ir"
)

// RewriteSummary describes what Rewrite changed.
type RewriteSummary struct {
	// Folded is the number of defining instructions proven constant and removed.
	Folded int `json:"folded"`
	// Replaced is the number of operands turned into literals.
	Replaced int `json:"replaced"`
	// Cleaned is the number of instructions removed by the cleanup loop.
	Cleaned int `json:"cleaned"`
}

// Rewrite replaces every use of a value proven constant by its literal and
// removes the defining instruction. Only loads, binary operations and
// compares are folded; allocas, stores and opaque instructions are kept.
//
// A value is constant when its slot holds Constant(k) in the OUT state of the
// block that defines it. Deletions are collected first and applied after the
// scan. Producers that become unused are only removed when opts.Cleanup is set.
func Rewrite(res *Result, opts Options) RewriteSummary {
	var summary RewriteSummary
	fn := res.Func

	consts := make(map[ir.Slot]int64)
	folded := make(map[*ir.Instruction]bool)
	for _, b := range fn.Blocks {
		out := res.Out[b]
		for _, in := range b.Instrs {
			if !in.Kind.ProducesValue() || !in.HasDef() {
				continue
			}
			if k, ok := out[in.Def].Int(); ok {
				consts[in.Def] = k
				folded[in] = true
			}
		}
	}
	if len(folded) == 0 {
		if opts.Cleanup {
			summary.Cleaned = EliminateDeadCode(fn)
		}
		return summary
	}

	for _, b := range fn.Blocks {
		kept := b.Instrs[:0]
		for _, in := range b.Instrs {
			if folded[in] {
				summary.Folded++
				continue
			}
			for i, arg := range in.Args {
				if arg.IsLiteral() {
					continue
				}
				if k, ok := consts[arg.Slot]; ok {
					in.Args[i] = ir.Lit(k)
					summary.Replaced++
				}
			}
			kept = append(kept, in)
		}
		clear(b.Instrs[len(kept):])
		b.Instrs = kept
	}

	if opts.Cleanup {
		summary.Cleaned = EliminateDeadCode(fn)
	}
	return summary
}

// EliminateDeadCode removes, until nothing changes, value instructions whose
// result is never read and allocas that are only ever stored to, together
// with those stores. Opaque instructions are assumed to have side effects.
func EliminateDeadCode(fn *ir.Function) int {
	removed := 0
	for {
		readers := countReaders(fn)
		dead := make(map[*ir.Instruction]bool)
		deadSlots := make(map[ir.Slot]bool)

		for _, b := range fn.Blocks {
			for _, in := range b.Instrs {
				switch {
				case in.Kind.ProducesValue() && readers[in.Def] == 0:
					dead[in] = true
				case in.Kind == ir.KindAlloca && readers[in.Def] == 0:
					dead[in] = true
					deadSlots[in.Def] = true
				}
			}
		}
		for _, b := range fn.Blocks {
			for _, in := range b.Instrs {
				if addr, ok := in.StoreTarget(); ok && deadSlots[addr] {
					dead[in] = true
				}
			}
		}
		if len(dead) == 0 {
			return removed
		}

		for _, b := range fn.Blocks {
			kept := b.Instrs[:0]
			for _, in := range b.Instrs {
				if dead[in] {
					removed++
					continue
				}
				kept = append(kept, in)
			}
			clear(b.Instrs[len(kept):])
			b.Instrs = kept
		}
	}
}

// countReaders counts how often each slot is read. The address operand of a
// store is a write and is not counted.
func countReaders(fn *ir.Function) map[ir.Slot]int {
	readers := make(map[ir.Slot]int)
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			for i, arg := range in.Args {
				if arg.IsLiteral() || (in.Kind == ir.KindStore && i == 1) {
					continue
				}
				readers[arg.Slot]++
			}
		}
	}
	return readers
}
