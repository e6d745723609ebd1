package ir

// Block is a basic block: a straight-line run of instructions ending in a terminator.
type Block struct {
	Index  int
	Name   string
	Instrs []*Instruction
	Preds  []*Block
	// Succs holds zero successors for a return, one for an unconditional
	// branch and two (taken, not-taken) for a conditional branch.
	Succs []*Block
}

// Terminator returns the last instruction if it is a terminator.
func (b *Block) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Kind.IsTerminator() {
		return nil
	}
	return last
}

func (b *Block) String() string {
	return b.Name
}
