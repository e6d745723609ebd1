package lattice

import (
	"strconv"

	"github.com/gnolang/cprop/internal/ir"
)

type kind uint8

const (
	kindTop kind = iota // not yet observed on any analysed path
	kindConst
	kindBottom // varies, not a usable constant
)

// Value is an element of the constant lattice: Top, Constant(k) or Bottom.
// The zero Value is Top.
type Value struct {
	kind kind
	k    int64
}

func Top() Value { return Value{kind: kindTop} }

func Bottom() Value { return Value{kind: kindBottom} }

func Const(k int64) Value { return Value{kind: kindConst, k: k} }

// FromLiteral lifts an integer literal into the lattice.
func FromLiteral(k int64) Value { return Const(k) }

// IsConstant reports whether v is a definite constant.
func IsConstant(v Value) bool { return v.kind == kindConst }

func (v Value) IsTop() bool      { return v.kind == kindTop }
func (v Value) IsBottom() bool   { return v.kind == kindBottom }
func (v Value) IsConstant() bool { return v.kind == kindConst }

// Int returns the constant carried by v.
func (v Value) Int() (int64, bool) {
	return v.k, v.kind == kindConst
}

func (v Value) String() string {
	switch v.kind {
	case kindTop:
		return "Top"
	case kindBottom:
		return "Bottom"
	default:
		return "Constant(" + strconv.FormatInt(v.k, 10) + ")"
	}
}

// Meet returns the greatest lower bound of a and b.
func Meet(a, b Value) Value {
	switch {
	case a.kind == kindBottom || b.kind == kindBottom:
		return Bottom()
	case a.kind == kindTop:
		return b
	case b.kind == kindTop:
		return a
	case a.k == b.k:
		return a
	default:
		return Bottom()
	}
}

// Leq reports whether a ⊑ b in the order Bottom ⊑ Constant(k) ⊑ Top.
func Leq(a, b Value) bool {
	return Meet(a, b) == a
}

// AbstractState maps slots to their lattice value at one program point.
// Missing entries are interpreted as Bottom.
type AbstractState map[ir.Slot]Value

// GetValue returns the stored value or Bottom when absent.
func GetValue(state AbstractState, slot ir.Slot) Value {
	if val, ok := state[slot]; ok {
		return val
	}
	return Bottom()
}

// SetValue sets the entry for slot.
func SetValue(state AbstractState, slot ir.Slot, value Value) {
	state[slot] = value
}

// NewState returns a state mapping every slot to value.
func NewState(slots []ir.Slot, value Value) AbstractState {
	out := make(AbstractState, len(slots))
	for _, s := range slots {
		out[s] = value
	}
	return out
}

// CloneState returns a shallow copy of the abstract state.
func CloneState(state AbstractState) AbstractState {
	out := make(AbstractState, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

// MeetStates lowers dst pointwise by src. A slot absent from src does not
// constrain dst.
func MeetStates(dst, src AbstractState) {
	for slot, v := range src {
		cur, ok := dst[slot]
		if !ok {
			cur = Top()
		}
		dst[slot] = Meet(cur, v)
	}
}

// StateEqual reports whether two abstract states hold the same keys and values.
func StateEqual(a, b AbstractState) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || w != v {
			return false
		}
	}
	return true
}
