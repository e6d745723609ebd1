package ir

import "strconv"

// Operand is either an integer literal or a reference to a slot.
type Operand struct {
	Slot    Slot
	Value   int64
	literal bool
}

// Lit returns a literal operand.
func Lit(k int64) Operand {
	return Operand{Slot: NoSlot, Value: k, literal: true}
}

// Ref returns an operand referring to s.
func Ref(s Slot) Operand {
	return Operand{Slot: s}
}

// IsLiteral reports whether the operand carries its value inline.
func (o Operand) IsLiteral() bool {
	return o.literal
}

func (o Operand) format(t *SlotTable) string {
	if o.literal {
		return strconv.FormatInt(o.Value, 10)
	}
	return "%" + t.Name(o.Slot)
}
