package constprop

import (
	"github.com/oleiade/lane"

	"github.com/gnolang/cprop/internal/analysis/lattice"
	"github.com/gnolang/cprop/internal/ir"
)

// Stats describes the work done by one fixpoint computation.
type Stats struct {
	Slots  int `json:"slots"`
	Blocks int `json:"blocks"`
	// Visits counts blocks taken off the worklist.
	Visits int `json:"visits"`
	// Changes counts OUT states that were replaced by a different one.
	Changes int `json:"changes"`
}

// Result holds the converged IN and OUT states of every block.
type Result struct {
	Func  *ir.Function
	Slots []ir.Slot
	In    map[*ir.Block]lattice.AbstractState
	Out   map[*ir.Block]lattice.AbstractState
	// Executed marks the blocks the analysis found reachable.
	Executed map[*ir.Block]bool
	Stats    Stats

	lines map[ir.Slot]int
}

// TrackedSlots returns every slot assigned anywhere in fn: instruction
// definitions and store targets, in order of first appearance.
func TrackedSlots(fn *ir.Function) []ir.Slot {
	seen := make(map[ir.Slot]bool)
	var slots []ir.Slot
	add := func(s ir.Slot) {
		if s != ir.NoSlot && !seen[s] {
			seen[s] = true
			slots = append(slots, s)
		}
	}
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.HasDef() {
				add(in.Def)
			}
			if addr, ok := in.StoreTarget(); ok {
				add(addr)
			}
		}
	}
	return slots
}

// Analyze computes the constant state at the entry and exit of every block of fn.
// fn is not modified.
func Analyze(fn *ir.Function, opts Options) *Result {
	slots := TrackedSlots(fn)
	res := &Result{
		Func:     fn,
		Slots:    slots,
		In:       make(map[*ir.Block]lattice.AbstractState, len(fn.Blocks)),
		Out:      make(map[*ir.Block]lattice.AbstractState, len(fn.Blocks)),
		Executed: make(map[*ir.Block]bool, len(fn.Blocks)),
		Stats:    Stats{Slots: len(slots), Blocks: len(fn.Blocks)},
		lines:    definitionLines(fn),
	}

	for _, b := range fn.Blocks {
		res.In[b] = lattice.NewState(slots, lattice.Top())
		res.Out[b] = lattice.NewState(slots, lattice.Top())
	}
	entry := fn.Entry()
	if entry == nil {
		return res
	}
	if !opts.OptimisticEntry {
		res.In[entry] = lattice.NewState(slots, lattice.Bottom())
	}

	worklist := lane.NewQueue()
	worklist.Enqueue(entry)
	for !worklist.Empty() {
		block := worklist.Dequeue().(*ir.Block)
		res.Stats.Visits++

		in := res.meet(block)
		res.In[block] = in

		out, succs := transferBlock(block, in, opts)
		changed := !lattice.StateEqual(out, res.Out[block])
		if !changed && res.Executed[block] {
			continue
		}
		if changed {
			res.Stats.Changes++
		}
		res.Executed[block] = true
		res.Out[block] = out
		if opts.Trace != nil {
			opts.Trace(block, lattice.CloneState(out))
		}
		for _, s := range succs {
			worklist.Enqueue(s)
		}
	}
	return res
}

// meet combines the OUT states of every predecessor of b. Predecessors
// that were never executed are still Top and do not constrain the result.
func (r *Result) meet(b *ir.Block) lattice.AbstractState {
	if len(b.Preds) == 0 {
		return lattice.CloneState(r.In[b])
	}
	in := lattice.NewState(r.Slots, lattice.Top())
	for _, p := range b.Preds {
		lattice.MeetStates(in, r.Out[p])
	}
	return in
}

// definitionLines maps each slot to the line of its first definition,
// falling back to its first store.
func definitionLines(fn *ir.Function) map[ir.Slot]int {
	lines := make(map[ir.Slot]int)
	stores := make(map[ir.Slot]int)
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.HasDef() {
				if _, ok := lines[in.Def]; !ok {
					lines[in.Def] = in.Line
				}
			}
			if addr, ok := in.StoreTarget(); ok {
				if _, ok := stores[addr]; !ok {
					stores[addr] = in.Line
				}
			}
		}
	}
	for s, line := range stores {
		if _, ok := lines[s]; !ok {
			lines[s] = line
		}
	}
	return lines
}
