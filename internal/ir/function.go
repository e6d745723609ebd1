package ir

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Function is a control-flow graph of basic blocks. Blocks[0] is the entry.
type Function struct {
	Name   string
	Blocks []*Block
	Slots  *SlotTable
}

// Entry returns the entry block.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// BlockByName returns the block with the given name, or nil.
func (f *Function) BlockByName(name string) *Block {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// SlotName returns the printable name of s.
func (f *Function) SlotName(s Slot) string {
	return f.Slots.Name(s)
}

// NumInstrs counts the instructions of every block.
func (f *Function) NumInstrs() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}

// Definitions maps every defined slot to the first instruction defining it.
func (f *Function) Definitions() map[Slot]*Instruction {
	defs := make(map[Slot]*Instruction)
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.HasDef() {
				if _, ok := defs[in.Def]; !ok {
					defs[in.Def] = in
				}
			}
		}
	}
	return defs
}

var errMalformed = errors.New("malformed function")

// Validate checks the structural contract the analysis relies on and
// reports every violation it finds.
func (f *Function) Validate() error {
	if len(f.Blocks) == 0 {
		return fmt.Errorf("%w %s: no blocks", errMalformed, f.Name)
	}

	var errs []error
	fail := func(b *Block, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w %s: block %s: %s", errMalformed, f.Name, b.Name, fmt.Sprintf(format, args...)))
	}

	if entry := f.Entry(); len(entry.Preds) > 0 {
		fail(entry, "entry block has %d predecessors", len(entry.Preds))
	}

	values := make(map[Slot]bool)
	for _, b := range f.Blocks {
		term := b.Terminator()
		if term == nil {
			fail(b, "missing terminator")
			continue
		}
		for i, in := range b.Instrs {
			if in.Kind.IsTerminator() && i != len(b.Instrs)-1 {
				fail(b, "terminator %s before end of block", in.Kind)
			}
			if err := checkOperands(in); err != nil {
				fail(b, "line %d: %v", in.Line, err)
			}
			if in.HasDef() && in.Kind != KindStore {
				if values[in.Def] {
					fail(b, "slot %%%s defined more than once", f.SlotName(in.Def))
				}
				values[in.Def] = true
			}
		}

		want := 0
		switch term.Kind {
		case KindBranch:
			want = 1
		case KindCondBranch:
			want = 2
		}
		if len(b.Succs) != want {
			fail(b, "%s terminator with %d successors", term.Kind, len(b.Succs))
		}
	}

	defs := f.Definitions()
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if addr, ok := in.StoreTarget(); ok {
				if d, defined := defs[addr]; defined && d.Kind.ProducesValue() {
					fail(b, "store into value %%%s", f.SlotName(addr))
				}
			}
		}
	}

	return errors.Join(errs...)
}

func checkOperands(in *Instruction) error {
	want := -1
	switch in.Kind {
	case KindAlloca, KindBranch:
		want = 0
	case KindLoad, KindCondBranch:
		want = 1
	case KindStore, KindBinary, KindCompare:
		want = 2
	case KindReturn:
		if len(in.Args) > 1 {
			return fmt.Errorf("ret takes at most one operand, got %d", len(in.Args))
		}
	}
	if want >= 0 && len(in.Args) != want {
		return fmt.Errorf("%s takes %d operands, got %d", in.Kind, want, len(in.Args))
	}
	switch in.Kind {
	case KindAlloca, KindLoad, KindBinary, KindCompare:
		if !in.HasDef() {
			return fmt.Errorf("%s must define a slot", in.Kind)
		}
	}
	if in.Kind == KindLoad && in.Args[0].IsLiteral() {
		return errors.New("load from a literal address")
	}
	if in.Kind == KindStore && in.Args[1].IsLiteral() {
		return errors.New("store to a literal address")
	}
	return nil
}

// FormatInstr renders a single instruction in an LLVM-like syntax.
func (f *Function) FormatInstr(in *Instruction) string {
	var sb strings.Builder
	if in.HasDef() && in.Kind != KindStore {
		sb.WriteString("%" + f.SlotName(in.Def) + " = ")
	}
	args := make([]string, len(in.Args))
	for i, a := range in.Args {
		args[i] = a.format(f.Slots)
	}
	switch in.Kind {
	case KindAlloca:
		sb.WriteString("alloca")
	case KindLoad:
		sb.WriteString("load " + args[0])
	case KindStore:
		sb.WriteString("store " + strings.Join(args, ", "))
	case KindBinary:
		sb.WriteString(in.Op.String() + " " + strings.Join(args, ", "))
	case KindCompare:
		sb.WriteString("icmp " + in.Pred.String() + " " + strings.Join(args, ", "))
	case KindCondBranch, KindBranch:
		sb.WriteString("br")
		if len(args) > 0 {
			sb.WriteString(" " + args[0])
		}
	case KindReturn:
		sb.WriteString("ret")
		if len(args) > 0 {
			sb.WriteString(" " + args[0])
		}
	default:
		name := in.Name
		if name == "" {
			name = "op"
		}
		sb.WriteString(name)
		if len(args) > 0 {
			sb.WriteString(" " + strings.Join(args, ", "))
		}
	}
	return sb.String()
}

// Print writes the whole function to w.
func (f *Function) Print(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "define %s {\n", f.Name); err != nil {
		return err
	}
	for i, b := range f.Blocks {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s:\n", b.Name)
		for _, in := range b.Instrs {
			line := f.FormatInstr(in)
			if in.Kind == KindCondBranch || in.Kind == KindBranch {
				targets := make([]string, len(b.Succs))
				for j, s := range b.Succs {
					targets[j] = "label %" + s.Name
				}
				sep := " "
				if len(in.Args) > 0 {
					sep = ", "
				}
				line += sep + strings.Join(targets, ", ")
			}
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func (f *Function) String() string {
	var sb strings.Builder
	_ = f.Print(&sb)
	return sb.String()
}
