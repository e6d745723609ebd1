package constprop

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnolang/cprop/internal/analysis/lattice"
	"github.com/gnolang/cprop/internal/ir"
)

type storeEvent struct {
	Addr  string
	Value int64
}

type execution struct {
	Ret    int64
	HasRet bool
	Stores []storeEvent
	Path   []string
}

// interpret executes fn concretely. Locations that were never stored to, and
// results of opaque instructions, read their value from inputs by slot name.
func interpret(t *testing.T, fn *ir.Function, inputs map[string]int64) execution {
	t.Helper()
	var exec execution
	env := make(map[ir.Slot]int64)
	locals := make(map[ir.Slot]bool)

	read := func(op ir.Operand) int64 {
		if op.IsLiteral() {
			return op.Value
		}
		if v, ok := env[op.Slot]; ok {
			return v
		}
		return inputs[fn.SlotName(op.Slot)]
	}
	concrete := func(v lattice.Value) int64 {
		k, ok := v.Int()
		require.True(t, ok, "operation did not fold to a constant: %v", v)
		return k
	}

	block := fn.Entry()
	for steps := 0; block != nil; steps++ {
		require.Less(t, steps, 10000, "execution does not terminate")
		exec.Path = append(exec.Path, block.Name)
		var next *ir.Block
		for _, in := range block.Instrs {
			switch in.Kind {
			case ir.KindAlloca:
				locals[in.Def] = true
				delete(env, in.Def)
			case ir.KindLoad:
				env[in.Def] = read(in.Args[0])
			case ir.KindStore:
				addr, _ := in.StoreTarget()
				v := read(in.Args[0])
				env[addr] = v
				if !locals[addr] {
					exec.Stores = append(exec.Stores, storeEvent{Addr: fn.SlotName(addr), Value: v})
				}
			case ir.KindBinary:
				x, y := lattice.Const(read(in.Args[0])), lattice.Const(read(in.Args[1]))
				env[in.Def] = concrete(Fold(in.Op, x, y, DivZeroFold))
			case ir.KindCompare:
				x, y := lattice.Const(read(in.Args[0])), lattice.Const(read(in.Args[1]))
				env[in.Def] = concrete(Compare(in.Pred, x, y))
			case ir.KindOther:
				if in.HasDef() {
					env[in.Def] = inputs[fn.SlotName(in.Def)]
				}
			case ir.KindCondBranch:
				if read(in.Args[0]) != 0 {
					next = block.Succs[0]
				} else {
					next = block.Succs[1]
				}
			case ir.KindBranch:
				next = block.Succs[0]
			case ir.KindReturn:
				if len(in.Args) > 0 {
					exec.Ret, exec.HasRet = read(in.Args[0]), true
				}
			}
		}
		block = next
	}
	return exec
}
