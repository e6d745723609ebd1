package ir

import "fmt"

// Kind is the closed set of instruction kinds the analysis understands.
type Kind uint8

const (
	KindOther Kind = iota
	KindAlloca
	KindLoad
	KindStore
	KindBinary
	KindCompare
	KindCondBranch
	KindBranch
	KindReturn
)

func (k Kind) String() string {
	switch k {
	case KindAlloca:
		return "alloca"
	case KindLoad:
		return "load"
	case KindStore:
		return "store"
	case KindBinary:
		return "binary"
	case KindCompare:
		return "icmp"
	case KindCondBranch:
		return "condbr"
	case KindBranch:
		return "br"
	case KindReturn:
		return "ret"
	default:
		return "other"
	}
}

// IsTerminator reports whether the kind ends a basic block.
func (k Kind) IsTerminator() bool {
	return k == KindCondBranch || k == KindBranch || k == KindReturn
}

// ProducesValue reports whether the instruction's def is a plain value
// (as opposed to a storage location) and may therefore be folded away.
func (k Kind) ProducesValue() bool {
	return k == KindLoad || k == KindBinary || k == KindCompare
}

// BinaryOp is the opcode of a KindBinary instruction.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpSDiv
	OpSRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpAShr
	OpUnknown
)

var binaryOpNames = [...]string{
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpSDiv:    "sdiv",
	OpSRem:    "srem",
	OpAnd:     "and",
	OpOr:      "or",
	OpXor:     "xor",
	OpShl:     "shl",
	OpAShr:    "ashr",
	OpUnknown: "unknown",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "unknown"
}

// ParseBinaryOp maps a mnemonic to its opcode.
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for op, name := range binaryOpNames {
		if name == s && BinaryOp(op) != OpUnknown {
			return BinaryOp(op), true
		}
	}
	return OpUnknown, false
}

// Predicate is the condition of a KindCompare instruction. All predicates are signed.
type Predicate uint8

const (
	PredEQ Predicate = iota
	PredNE
	PredSGT
	PredSLT
	PredSGE
	PredSLE
)

var predicateNames = [...]string{
	PredEQ:  "eq",
	PredNE:  "ne",
	PredSGT: "sgt",
	PredSLT: "slt",
	PredSGE: "sge",
	PredSLE: "sle",
}

func (p Predicate) String() string {
	if int(p) < len(predicateNames) {
		return predicateNames[p]
	}
	return fmt.Sprintf("pred(%d)", uint8(p))
}

// ParsePredicate maps a mnemonic to its predicate.
func ParsePredicate(s string) (Predicate, bool) {
	for p, name := range predicateNames {
		if name == s {
			return Predicate(p), true
		}
	}
	return 0, false
}

// Instruction is a single IR instruction.
//
// Operand layout per kind:
//
//	Alloca      def
//	Load        def = load Args[0]            (Args[0] is the address slot)
//	Store       store Args[0] -> Args[1]      (value, address)
//	Binary      def = Op Args[0], Args[1]
//	Compare     def = icmp Pred Args[0], Args[1]
//	CondBranch  br Args[0]                    (successors: taken, not-taken)
//	Branch      br                            (one successor)
//	Return      ret [Args[0]]
//	Other       [def =] Name Args...
type Instruction struct {
	Kind Kind
	Op   BinaryOp
	Pred Predicate
	Name string
	Def  Slot
	Args []Operand
	// Line is a stable position of the instruction, used by reports.
	Line int
}

// HasDef reports whether the instruction defines a slot.
func (in *Instruction) HasDef() bool {
	return in.Def != NoSlot
}

// Uses returns the slots read by the instruction, in operand order.
func (in *Instruction) Uses() []Slot {
	var uses []Slot
	for _, a := range in.Args {
		if !a.IsLiteral() {
			uses = append(uses, a.Slot)
		}
	}
	return uses
}

// StoreTarget returns the address slot written by a store.
func (in *Instruction) StoreTarget() (Slot, bool) {
	if in.Kind != KindStore || len(in.Args) < 2 || in.Args[1].IsLiteral() {
		return NoSlot, false
	}
	return in.Args[1].Slot, true
}
