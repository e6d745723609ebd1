package ir

import (
	"errors"
	"fmt"
)

// Builder assembles a Function block by block. Branch targets are named and
// resolved in Build, so blocks may be referenced before they are created.
type Builder struct {
	fn     *Function
	blocks map[string]*BlockBuilder
	order  []*BlockBuilder
}

// BlockBuilder appends instructions to one block.
type BlockBuilder struct {
	parent  *Builder
	block   *Block
	targets []string
}

// NewBuilder starts a function. The first block created becomes the entry.
func NewBuilder(name string) *Builder {
	return &Builder{
		fn:     &Function{Name: name, Slots: NewSlotTable()},
		blocks: make(map[string]*BlockBuilder),
	}
}

// Lit returns a literal operand.
func (b *Builder) Lit(k int64) Operand {
	return Lit(k)
}

// Ref returns an operand referring to the slot called name.
func (b *Builder) Ref(name string) Operand {
	return Ref(b.fn.Slots.Intern(name))
}

// Block returns the builder for the named block, creating it on first use.
func (b *Builder) Block(name string) *BlockBuilder {
	if bb, ok := b.blocks[name]; ok {
		return bb
	}
	bb := &BlockBuilder{
		parent: b,
		block:  &Block{Index: len(b.order), Name: name},
	}
	b.blocks[name] = bb
	b.order = append(b.order, bb)
	return bb
}

func (bb *BlockBuilder) def(name string) Slot {
	if name == "" {
		return NoSlot
	}
	return bb.parent.fn.Slots.Intern(name)
}

// Add appends an already constructed instruction. Targets name the
// successors when in is a terminator.
func (bb *BlockBuilder) Add(in *Instruction, targets ...string) *BlockBuilder {
	bb.block.Instrs = append(bb.block.Instrs, in)
	if in.Kind.IsTerminator() {
		bb.targets = append(bb.targets[:0], targets...)
	}
	return bb
}

func (bb *BlockBuilder) Alloca(def string) *BlockBuilder {
	return bb.Add(&Instruction{Kind: KindAlloca, Def: bb.def(def)})
}

func (bb *BlockBuilder) Load(def, addr string) *BlockBuilder {
	return bb.Add(&Instruction{Kind: KindLoad, Def: bb.def(def), Args: []Operand{bb.parent.Ref(addr)}})
}

func (bb *BlockBuilder) Store(value Operand, addr string) *BlockBuilder {
	return bb.Add(&Instruction{Kind: KindStore, Def: NoSlot, Args: []Operand{value, bb.parent.Ref(addr)}})
}

func (bb *BlockBuilder) Binary(def string, op BinaryOp, x, y Operand) *BlockBuilder {
	return bb.Add(&Instruction{Kind: KindBinary, Op: op, Def: bb.def(def), Args: []Operand{x, y}})
}

func (bb *BlockBuilder) Compare(def string, pred Predicate, x, y Operand) *BlockBuilder {
	return bb.Add(&Instruction{Kind: KindCompare, Pred: pred, Def: bb.def(def), Args: []Operand{x, y}})
}

// Other appends an opaque instruction. An empty def means it defines nothing.
func (bb *BlockBuilder) Other(def, name string, args ...Operand) *BlockBuilder {
	return bb.Add(&Instruction{Kind: KindOther, Name: name, Def: bb.def(def), Args: args})
}

func (bb *BlockBuilder) CondBr(cond Operand, taken, notTaken string) *BlockBuilder {
	return bb.Add(&Instruction{Kind: KindCondBranch, Def: NoSlot, Args: []Operand{cond}}, taken, notTaken)
}

func (bb *BlockBuilder) Br(target string) *BlockBuilder {
	return bb.Add(&Instruction{Kind: KindBranch, Def: NoSlot}, target)
}

func (bb *BlockBuilder) Ret(value ...Operand) *BlockBuilder {
	return bb.Add(&Instruction{Kind: KindReturn, Def: NoSlot, Args: value})
}

// Build resolves branch targets, wires predecessor and successor lists and
// numbers instructions that carry no line yet.
func (b *Builder) Build() (*Function, error) {
	fn := b.fn
	fn.Blocks = fn.Blocks[:0]
	for _, bb := range b.order {
		bb.block.Preds, bb.block.Succs = nil, nil
		fn.Blocks = append(fn.Blocks, bb.block)
	}

	var errs []error
	for _, bb := range b.order {
		for _, name := range bb.targets {
			target, ok := b.blocks[name]
			if !ok {
				errs = append(errs, fmt.Errorf("block %s: unknown branch target %q", bb.block.Name, name))
				continue
			}
			bb.block.Succs = append(bb.block.Succs, target.block)
			if !containsBlock(target.block.Preds, bb.block) {
				target.block.Preds = append(target.block.Preds, bb.block)
			}
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("function %s: %w", fn.Name, errors.Join(errs...))
	}

	line := 0
	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			line++
			if in.Line == 0 {
				in.Line = line
			} else {
				line = in.Line
			}
		}
	}
	return fn, nil
}

func containsBlock(list []*Block, b *Block) bool {
	for _, x := range list {
		if x == b {
			return true
		}
	}
	return false
}
