package constprop

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnolang/cprop/internal/ir"
)

type program struct {
	name  string
	build func(b *ir.Builder)
}

func (p program) fn(t *testing.T) *ir.Function {
	t.Helper()
	b := ir.NewBuilder(p.name)
	p.build(b)
	fn, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, fn.Validate())
	return fn
}

var straightLine = program{
	name: "straight",
	build: func(b *ir.Builder) {
		b.Block("entry").
			Alloca("x").
			Store(b.Lit(5), "x").
			Load("t1", "x").
			Binary("t2", ir.OpAdd, b.Ref("t1"), b.Lit(3)).
			Ret(b.Ref("t2"))
	},
}

// branches stores x=1 and branches on x>0 (or on an unmodelled load of p
// when unresolved) into blocks storing 2 and 3, which join and return x.
func branches(name string, unresolved bool) program {
	return program{
		name: name,
		build: func(b *ir.Builder) {
			entry := b.Block("entry").
				Alloca("x").
				Store(b.Lit(1), "x")
			if unresolved {
				entry.Load("v", "p")
			} else {
				entry.Load("v", "x")
			}
			entry.Compare("c", ir.PredSGT, b.Ref("v"), b.Lit(0)).
				CondBr(b.Ref("c"), "then", "else")
			b.Block("then").Store(b.Lit(2), "x").Br("join")
			b.Block("else").Store(b.Lit(3), "x").Br("join")
			b.Block("join").Load("r", "x").Ret(b.Ref("r"))
		},
	}
}

var (
	diverging  = branches("diverging", false)
	unresolved = branches("unresolved", true)
)

// counting loops i from 0 to 10 while k stays 7, then stores i+k to out.
var counting = program{
	name: "counting",
	build: func(b *ir.Builder) {
		b.Block("entry").
			Alloca("i").
			Alloca("k").
			Store(b.Lit(0), "i").
			Store(b.Lit(7), "k").
			Br("header")
		b.Block("header").
			Load("iv", "i").
			Compare("lt", ir.PredSLT, b.Ref("iv"), b.Lit(10)).
			CondBr(b.Ref("lt"), "body", "exit")
		b.Block("body").
			Load("iv2", "i").
			Load("kv", "k").
			Binary("kk", ir.OpMul, b.Ref("kv"), b.Lit(2)).
			Binary("next", ir.OpAdd, b.Ref("iv2"), b.Lit(1)).
			Store(b.Ref("next"), "i").
			Br("header")
		b.Block("exit").
			Load("ie", "i").
			Load("ke", "k").
			Binary("sum", ir.OpAdd, b.Ref("ie"), b.Ref("ke")).
			Store(b.Ref("sum"), "out").
			Ret(b.Ref("ke"))
	},
}

// opaque mixes a call result with constants.
var opaque = program{
	name: "opaque",
	build: func(b *ir.Builder) {
		b.Block("entry").
			Other("r", "call", b.Lit(1)).
			Binary("a", ir.OpMul, b.Lit(6), b.Lit(7)).
			Binary("m", ir.OpAdd, b.Ref("r"), b.Ref("a")).
			Compare("eq", ir.PredEQ, b.Ref("a"), b.Lit(42)).
			Other("", "print", b.Ref("m"), b.Ref("eq")).
			Ret(b.Ref("a"))
	},
}

// nested resolves an outer branch but leaves an inner one to a parameter.
var nested = program{
	name: "nested",
	build: func(b *ir.Builder) {
		b.Block("entry").
			Alloca("x").
			Binary("ten", ir.OpSDiv, b.Lit(100), b.Lit(10)).
			Compare("big", ir.PredSGE, b.Ref("ten"), b.Lit(10)).
			Store(b.Ref("ten"), "x").
			CondBr(b.Ref("big"), "outer", "never")
		b.Block("outer").
			Load("arg", "param").
			Compare("pos", ir.PredSGT, b.Ref("arg"), b.Lit(0)).
			CondBr(b.Ref("pos"), "left", "right")
		b.Block("left").Store(b.Lit(10), "x").Br("merge")
		b.Block("right").Store(b.Lit(10), "x").Br("merge")
		b.Block("never").Store(b.Lit(99), "x").Br("merge")
		b.Block("merge").
			Load("xv", "x").
			Binary("y", ir.OpSub, b.Ref("xv"), b.Lit(4)).
			Store(b.Ref("y"), "result").
			Ret(b.Ref("y"))
	},
}

var allPrograms = []program{straightLine, diverging, unresolved, counting, opaque, nested}
