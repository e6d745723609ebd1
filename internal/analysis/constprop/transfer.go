package constprop

import (
	"github.com/gnolang/cprop/internal/analysis/lattice"
	"github.com/gnolang/cprop/internal/ir"
)

func evalOperand(state lattice.AbstractState, op ir.Operand) lattice.Value {
	if op.IsLiteral() {
		return lattice.FromLiteral(op.Value)
	}
	return lattice.GetValue(state, op.Slot)
}

// Fold evaluates a binary operation over lattice values with int64 wrap-around.
func Fold(op ir.BinaryOp, x, y lattice.Value, policy DivZeroPolicy) lattice.Value {
	if x.IsBottom() || y.IsBottom() {
		return lattice.Bottom()
	}
	if x.IsTop() || y.IsTop() {
		return lattice.Top()
	}
	a, _ := x.Int()
	b, _ := y.Int()

	switch op {
	case ir.OpAdd:
		return lattice.Const(a + b)
	case ir.OpSub:
		return lattice.Const(a - b)
	case ir.OpMul:
		return lattice.Const(a * b)
	case ir.OpSDiv, ir.OpSRem:
		if b == 0 {
			if policy == DivZeroBottom {
				return lattice.Bottom()
			}
			return lattice.Const(0)
		}
		if op == ir.OpSDiv {
			return lattice.Const(a / b)
		}
		return lattice.Const(a % b)
	case ir.OpAnd:
		return lattice.Const(a & b)
	case ir.OpOr:
		return lattice.Const(a | b)
	case ir.OpXor:
		return lattice.Const(a ^ b)
	case ir.OpShl, ir.OpAShr:
		if b < 0 || b > 63 {
			return lattice.Bottom()
		}
		if op == ir.OpShl {
			return lattice.Const(a << uint(b))
		}
		return lattice.Const(a >> uint(b))
	default:
		return lattice.Bottom()
	}
}

// Compare evaluates a predicate over lattice values; true is Constant(1).
func Compare(pred ir.Predicate, x, y lattice.Value) lattice.Value {
	if x.IsBottom() || y.IsBottom() {
		return lattice.Bottom()
	}
	if x.IsTop() || y.IsTop() {
		return lattice.Top()
	}
	a, _ := x.Int()
	b, _ := y.Int()

	var cond bool
	switch pred {
	case ir.PredEQ:
		cond = a == b
	case ir.PredNE:
		cond = a != b
	case ir.PredSGT:
		cond = a > b
	case ir.PredSLT:
		cond = a < b
	case ir.PredSGE:
		cond = a >= b
	case ir.PredSLE:
		cond = a <= b
	default:
		return lattice.Bottom()
	}
	if cond {
		return lattice.Const(1)
	}
	return lattice.Const(0)
}

// step applies the transfer function of one non-terminator instruction to state.
func step(state lattice.AbstractState, in *ir.Instruction, opts Options) {
	switch in.Kind {
	case ir.KindAlloca:
		lattice.SetValue(state, in.Def, lattice.Bottom())
	case ir.KindLoad:
		lattice.SetValue(state, in.Def, evalOperand(state, in.Args[0]))
	case ir.KindStore:
		if addr, ok := in.StoreTarget(); ok {
			lattice.SetValue(state, addr, evalOperand(state, in.Args[0]))
		}
	case ir.KindBinary:
		v := Fold(in.Op, evalOperand(state, in.Args[0]), evalOperand(state, in.Args[1]), opts.DivisionByZero)
		lattice.SetValue(state, in.Def, v)
	case ir.KindCompare:
		v := Compare(in.Pred, evalOperand(state, in.Args[0]), evalOperand(state, in.Args[1]))
		lattice.SetValue(state, in.Def, v)
	case ir.KindOther:
		if in.HasDef() {
			lattice.SetValue(state, in.Def, lattice.Bottom())
		}
	}
}

// successors picks the edges to propagate along once state is final.
// A conditional branch with a resolved condition only follows the edge it takes.
func successors(b *ir.Block, state lattice.AbstractState) []*ir.Block {
	term := b.Terminator()
	if term == nil || term.Kind != ir.KindCondBranch || len(b.Succs) != 2 {
		return b.Succs
	}
	k, ok := evalOperand(state, term.Args[0]).Int()
	switch {
	case !ok:
		return b.Succs
	case k != 0:
		return b.Succs[:1]
	default:
		return b.Succs[1:]
	}
}

// transferBlock runs every instruction of b over a copy of in and returns
// the resulting OUT state together with the successors to schedule.
func transferBlock(b *ir.Block, in lattice.AbstractState, opts Options) (lattice.AbstractState, []*ir.Block) {
	out := lattice.CloneState(in)
	for _, instr := range b.Instrs {
		if instr.Kind.IsTerminator() {
			break
		}
		step(out, instr, opts)
	}
	return out, successors(b, out)
}
