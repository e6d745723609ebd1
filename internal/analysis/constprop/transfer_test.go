package constprop

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gnolang/cprop/internal/analysis/lattice"
	"github.com/gnolang/cprop/internal/ir"
)

func TestFold(t *testing.T) {
	t.Parallel()
	c := lattice.Const
	tests := []struct {
		name   string
		op     ir.BinaryOp
		x, y   lattice.Value
		policy DivZeroPolicy
		want   lattice.Value
	}{
		{"add", ir.OpAdd, c(5), c(3), DivZeroFold, c(8)},
		{"sub", ir.OpSub, c(5), c(8), DivZeroFold, c(-3)},
		{"mul", ir.OpMul, c(-4), c(6), DivZeroFold, c(-24)},
		{"sdiv truncates", ir.OpSDiv, c(-7), c(2), DivZeroFold, c(-3)},
		{"srem", ir.OpSRem, c(-7), c(2), DivZeroFold, c(-1)},
		{"and", ir.OpAnd, c(0b1100), c(0b1010), DivZeroFold, c(0b1000)},
		{"or", ir.OpOr, c(0b1100), c(0b1010), DivZeroFold, c(0b1110)},
		{"xor", ir.OpXor, c(0b1100), c(0b1010), DivZeroFold, c(0b0110)},
		{"shl", ir.OpShl, c(3), c(4), DivZeroFold, c(48)},
		{"ashr keeps sign", ir.OpAShr, c(-16), c(2), DivZeroFold, c(-4)},
		{"add wraps", ir.OpAdd, c(math.MaxInt64), c(1), DivZeroFold, c(math.MinInt64)},
		{"sdiv overflow wraps", ir.OpSDiv, c(math.MinInt64), c(-1), DivZeroFold, c(math.MinInt64)},
		{"sdiv by zero folds to zero", ir.OpSDiv, c(9), c(0), DivZeroFold, c(0)},
		{"srem by zero folds to zero", ir.OpSRem, c(9), c(0), DivZeroFold, c(0)},
		{"sdiv by zero is bottom", ir.OpSDiv, c(9), c(0), DivZeroBottom, lattice.Bottom()},
		{"srem by zero is bottom", ir.OpSRem, c(9), c(0), DivZeroBottom, lattice.Bottom()},
		{"negative shift", ir.OpShl, c(1), c(-1), DivZeroFold, lattice.Bottom()},
		{"oversized shift", ir.OpAShr, c(1), c(64), DivZeroFold, lattice.Bottom()},
		{"unknown opcode", ir.OpUnknown, c(1), c(1), DivZeroFold, lattice.Bottom()},
		{"bottom operand", ir.OpAdd, lattice.Bottom(), c(1), DivZeroFold, lattice.Bottom()},
		{"bottom beats top", ir.OpAdd, lattice.Top(), lattice.Bottom(), DivZeroFold, lattice.Bottom()},
		{"top operand", ir.OpMul, c(2), lattice.Top(), DivZeroFold, lattice.Top()},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Fold(tt.op, tt.x, tt.y, tt.policy))
		})
	}
}

func TestFoldSoundness(t *testing.T) {
	t.Parallel()
	values := []int64{0, 1, -1, 2, 7, -13, 1 << 31, math.MaxInt64, math.MinInt64}
	for _, a := range values {
		for _, b := range values {
			x, y := lattice.Const(a), lattice.Const(b)
			assert.Equal(t, lattice.Const(a+b), Fold(ir.OpAdd, x, y, DivZeroFold))
			assert.Equal(t, lattice.Const(a-b), Fold(ir.OpSub, x, y, DivZeroFold))
			assert.Equal(t, lattice.Const(a*b), Fold(ir.OpMul, x, y, DivZeroFold))
			if b != 0 {
				assert.Equal(t, lattice.Const(a/b), Fold(ir.OpSDiv, x, y, DivZeroFold))
			}
		}
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()
	one, zero := lattice.Const(1), lattice.Const(0)
	tests := []struct {
		pred ir.Predicate
		a, b int64
		want lattice.Value
	}{
		{ir.PredEQ, 3, 3, one},
		{ir.PredEQ, 3, 4, zero},
		{ir.PredNE, 3, 4, one},
		{ir.PredSGT, -1, -2, one},
		{ir.PredSGT, -2, -1, zero},
		{ir.PredSLT, -2, -1, one},
		{ir.PredSGE, 5, 5, one},
		{ir.PredSGE, 4, 5, zero},
		{ir.PredSLE, 5, 5, one},
		{ir.PredSLE, 6, 5, zero},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compare(tt.pred, lattice.Const(tt.a), lattice.Const(tt.b)), "%d %s %d", tt.a, tt.pred, tt.b)
	}

	assert.Equal(t, lattice.Bottom(), Compare(ir.PredEQ, lattice.Bottom(), one))
	assert.Equal(t, lattice.Top(), Compare(ir.PredEQ, lattice.Top(), one))
	assert.Equal(t, lattice.Bottom(), Compare(ir.Predicate(42), one, one))
}

func TestStepStoreCopiesValue(t *testing.T) {
	t.Parallel()
	b := ir.NewBuilder("copy")
	b.Block("entry").
		Alloca("a").
		Alloca("b").
		Store(b.Lit(4), "a").
		Store(b.Ref("a"), "b").
		Store(b.Ref("unknown"), "a").
		Ret()
	fn, err := b.Build()
	assert.NoError(t, err)

	state := lattice.AbstractState{}
	for _, in := range fn.Entry().Instrs[:4] {
		step(state, in, Options{})
	}
	a, _ := fn.Slots.Lookup("a")
	bs, _ := fn.Slots.Lookup("b")
	assert.Equal(t, lattice.Const(4), state[a])
	assert.Equal(t, lattice.Const(4), state[bs])

	step(state, fn.Entry().Instrs[4], Options{})
	assert.Equal(t, lattice.Bottom(), state[a], "unseen slots read as Bottom")
	assert.Equal(t, lattice.Const(4), state[bs], "copies are by value")
}

func TestSuccessorsFollowCondition(t *testing.T) {
	t.Parallel()
	build := func(cond ir.Operand) *ir.Block {
		b := ir.NewBuilder("br")
		b.Block("entry").CondBr(cond, "yes", "no")
		b.Block("yes").Ret()
		b.Block("no").Ret()
		fn, err := b.Build()
		assert.NoError(t, err)
		return fn.Entry()
	}

	taken := build(ir.Lit(7))
	assert.Equal(t, []*ir.Block{taken.Succs[0]}, successors(taken, lattice.AbstractState{}))

	notTaken := build(ir.Lit(0))
	assert.Equal(t, []*ir.Block{notTaken.Succs[1]}, successors(notTaken, lattice.AbstractState{}))

	unknown := build(ir.Ref(0))
	assert.Len(t, successors(unknown, lattice.AbstractState{}), 2)
	assert.Len(t, successors(unknown, lattice.AbstractState{0: lattice.Top()}), 2)
	assert.Equal(t, []*ir.Block{unknown.Succs[1]}, successors(unknown, lattice.AbstractState{0: lattice.Const(0)}))
}
