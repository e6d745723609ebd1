// Package irfile reads and writes functions in the YAML IR format:
//
//	functions:
//	  - name: main
//	    blocks:
//	      - name: entry
//	        instrs:
//	          - {def: x, op: alloca}
//	          - {op: store, args: [5, x]}
//	          - {def: t, op: load, args: [x]}
//	          - {def: c, op: icmp, pred: sgt, args: [t, 0]}
//	          - {op: br, args: [c], succs: [then, else]}
//
// Integer arguments are literals, every other argument names a slot. A
// leading % on slot names is accepted and dropped.
package irfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/cprop/internal/ir"
)

// File is the top-level document.
type File struct {
	Functions []Function `yaml:"functions"`
}

type Function struct {
	Name   string  `yaml:"name"`
	Blocks []Block `yaml:"blocks"`
}

type Block struct {
	Name   string  `yaml:"name"`
	Instrs []Instr `yaml:"instrs"`
}

type Instr struct {
	Def   string   `yaml:"def,omitempty"`
	Op    string   `yaml:"op"`
	Pred  string   `yaml:"pred,omitempty"`
	Args  []Arg    `yaml:"args,omitempty,flow"`
	Succs []string `yaml:"succs,omitempty,flow"`

	// Line is the source line of the instruction in the YAML document.
	Line int `yaml:"-"`
}

// UnmarshalYAML records the line the instruction was written on.
func (in *Instr) UnmarshalYAML(value *yaml.Node) error {
	type plain Instr
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*in = Instr(p)
	in.Line = value.Line
	return nil
}

// Arg is an instruction argument: a literal or a slot name.
type Arg struct {
	Slot    string
	Value   int64
	Literal bool
}

func (a *Arg) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: argument must be a scalar", value.Line)
	}
	if value.ShortTag() == "!!int" {
		k, err := strconv.ParseInt(value.Value, 0, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*a = Arg{Value: k, Literal: true}
		return nil
	}
	name := strings.TrimPrefix(value.Value, "%")
	if name == "" {
		return fmt.Errorf("line %d: empty slot name", value.Line)
	}
	*a = Arg{Slot: name}
	return nil
}

func (a Arg) MarshalYAML() (interface{}, error) {
	if a.Literal {
		return a.Value, nil
	}
	return a.Slot, nil
}

// Decode reads a document from r.
func Decode(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode ir: %w", err)
	}
	return &f, nil
}

// Load reads and decodes the file at path.
func Load(path string) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	f, err := Decode(fd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Encode writes f to w.
func Encode(w io.Writer, f *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode ir: %w", err)
	}
	return enc.Close()
}

// ReplaceFunctions copies the document src to w, swapping in the functions of
// fns by name. Comments outside the replaced functions are kept, and so are
// the head, line and foot comments attached to a replaced function itself.
func ReplaceFunctions(src []byte, w io.Writer, fns map[string]Function) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return fmt.Errorf("decode ir: %w", err)
	}

	if list := functionsNode(&doc); list != nil {
		for i, item := range list.Content {
			fn, ok := fns[scalarValue(item, "name")]
			if !ok {
				continue
			}
			var replacement yaml.Node
			if err := replacement.Encode(fn); err != nil {
				return fmt.Errorf("encode function %s: %w", fn.Name, err)
			}
			replacement.HeadComment = item.HeadComment
			replacement.LineComment = item.LineComment
			replacement.FootComment = item.FootComment
			list.Content[i] = &replacement
		}
	}

	if doc.Kind == 0 {
		return nil
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode ir: %w", err)
	}
	return enc.Close()
}

// functionsNode returns the sequence under the top-level functions key.
func functionsNode(doc *yaml.Node) *yaml.Node {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "functions" && root.Content[i+1].Kind == yaml.SequenceNode {
			return root.Content[i+1]
		}
	}
	return nil
}

func scalarValue(mapping *yaml.Node, key string) string {
	if mapping.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1].Value
		}
	}
	return ""
}

// Build converts every function of the document and validates it.
func (f *File) Build() ([]*ir.Function, error) {
	fns := make([]*ir.Function, 0, len(f.Functions))
	for _, spec := range f.Functions {
		fn, err := spec.Build()
		if err != nil {
			return nil, err
		}
		if err := fn.Validate(); err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

// Build converts one function without validating it.
func (spec Function) Build() (*ir.Function, error) {
	b := ir.NewBuilder(spec.Name)
	for _, blk := range spec.Blocks {
		bb := b.Block(blk.Name)
		for _, in := range blk.Instrs {
			instr, err := convert(b, in)
			if err != nil {
				return nil, fmt.Errorf("function %s: block %s: line %d: %w", spec.Name, blk.Name, in.Line, err)
			}
			bb.Add(instr, in.Succs...)
		}
	}
	return b.Build()
}

func convert(b *ir.Builder, in Instr) (*ir.Instruction, error) {
	instr := &ir.Instruction{Def: ir.NoSlot, Line: in.Line}
	if in.Def != "" {
		instr.Def = b.Ref(strings.TrimPrefix(in.Def, "%")).Slot
	}
	for _, a := range in.Args {
		if a.Literal {
			instr.Args = append(instr.Args, b.Lit(a.Value))
		} else {
			instr.Args = append(instr.Args, b.Ref(a.Slot))
		}
	}

	switch in.Op {
	case "alloca":
		instr.Kind = ir.KindAlloca
	case "load":
		instr.Kind = ir.KindLoad
	case "store":
		instr.Kind = ir.KindStore
	case "icmp":
		pred, ok := ir.ParsePredicate(in.Pred)
		if !ok {
			return nil, fmt.Errorf("unknown predicate %q", in.Pred)
		}
		instr.Kind, instr.Pred = ir.KindCompare, pred
	case "br":
		instr.Kind = ir.KindBranch
		if len(in.Args) > 0 {
			instr.Kind = ir.KindCondBranch
		}
	case "ret":
		instr.Kind = ir.KindReturn
	case "":
		return nil, errors.New("missing op")
	default:
		if op, ok := ir.ParseBinaryOp(in.Op); ok {
			instr.Kind, instr.Op = ir.KindBinary, op
		} else {
			instr.Kind, instr.Name = ir.KindOther, in.Op
		}
	}
	if instr.Kind == ir.KindStore && instr.Def != ir.NoSlot {
		return nil, errors.New("store does not define a slot")
	}
	if !instr.Kind.IsTerminator() && len(in.Succs) > 0 {
		return nil, fmt.Errorf("%s cannot have successors", in.Op)
	}
	return instr, nil
}

// FromFunction converts fn back into its document form.
func FromFunction(fn *ir.Function) Function {
	spec := Function{Name: fn.Name}
	for _, b := range fn.Blocks {
		blk := Block{Name: b.Name, Instrs: make([]Instr, 0, len(b.Instrs))}
		for _, in := range b.Instrs {
			blk.Instrs = append(blk.Instrs, fromInstr(fn, b, in))
		}
		spec.Blocks = append(spec.Blocks, blk)
	}
	return spec
}

func fromInstr(fn *ir.Function, b *ir.Block, in *ir.Instruction) Instr {
	out := Instr{Line: in.Line}
	if in.HasDef() {
		out.Def = fn.SlotName(in.Def)
	}
	for _, a := range in.Args {
		if a.IsLiteral() {
			out.Args = append(out.Args, Arg{Value: a.Value, Literal: true})
		} else {
			out.Args = append(out.Args, Arg{Slot: fn.SlotName(a.Slot)})
		}
	}
	switch in.Kind {
	case ir.KindAlloca, ir.KindLoad, ir.KindStore, ir.KindReturn:
		out.Op = in.Kind.String()
	case ir.KindBinary:
		out.Op = in.Op.String()
	case ir.KindCompare:
		out.Op, out.Pred = "icmp", in.Pred.String()
	case ir.KindBranch, ir.KindCondBranch:
		out.Op = "br"
		for _, s := range b.Succs {
			out.Succs = append(out.Succs, s.Name)
		}
	default:
		out.Op = in.Name
	}
	return out
}

// Extensions lists the file suffixes recognised as IR files.
var Extensions = []string{".ir.yaml", ".ir.yml"}

// IsIRFile reports whether path names an IR file.
func IsIRFile(path string) bool {
	for _, ext := range Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
