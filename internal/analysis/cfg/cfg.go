package cfg

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/gnolang/cprop/internal/ir"
)

// CFG is the control-flow graph of one function.
type CFG struct {
	Func  *ir.Function
	graph *multi.DirectedGraph
	nodes map[*ir.Block]blockNode

	// dashed holds the blocks drawn as not executed by PrintDot.
	dashed map[*ir.Block]bool
}

// blockNode is identified by the block's position in Func.Blocks, which
// holds even when Block.Index was never assigned.
type blockNode struct {
	id    int64
	block *ir.Block
	cfg   *CFG
}

func (n blockNode) ID() int64 { return n.id }

func (n blockNode) DOTID() string { return n.block.Name }

func (n blockNode) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{
		{Key: "shape", Value: "box"},
		{Key: "label", Value: fmt.Sprintf("%s (%d)", n.block.Name, len(n.block.Instrs))},
	}
	if n.cfg.dashed[n.block] {
		attrs = append(attrs, encoding.Attribute{Key: "style", Value: "dashed"})
	}
	return attrs
}

type branchLine struct {
	multi.Line
	label string
}

func (l branchLine) Attributes() []encoding.Attribute {
	if l.label == "" {
		return nil
	}
	return []encoding.Attribute{{Key: "label", Value: l.label}}
}

// FromFunction builds the graph of fn. Blocks are identified by their
// position in fn.Blocks; successors outside fn.Blocks are ignored.
func FromFunction(fn *ir.Function) *CFG {
	c := &CFG{
		Func:  fn,
		graph: multi.NewDirectedGraph(),
		nodes: make(map[*ir.Block]blockNode, len(fn.Blocks)),
	}
	for i, b := range fn.Blocks {
		n := blockNode{id: int64(i), block: b, cfg: c}
		c.nodes[b] = n
		c.graph.AddNode(n)
	}

	var uid int64
	for _, b := range fn.Blocks {
		conditional := false
		if term := b.Terminator(); term != nil && term.Kind == ir.KindCondBranch {
			conditional = true
		}
		for i, succ := range b.Succs {
			to, ok := c.nodes[succ]
			if !ok {
				continue
			}
			label := ""
			if conditional {
				label = "T"
				if i == 1 {
					label = "F"
				}
			}
			c.graph.SetLine(branchLine{
				Line:  multi.Line{F: c.nodes[b], T: to, UID: uid},
				label: label,
			})
			uid++
		}
	}
	return c
}

// Reachable returns the blocks reachable from the entry along any edge.
func (c *CFG) Reachable() map[*ir.Block]bool {
	reach := make(map[*ir.Block]bool)
	entry := c.Func.Entry()
	if entry == nil {
		return reach
	}
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) {
			reach[c.blockOf(n)] = true
		},
	}
	bf.Walk(c.graph, c.nodes[entry], nil)
	return reach
}

// Unreachable lists, in function order, the blocks no path from the entry reaches.
func (c *CFG) Unreachable() []*ir.Block {
	reach := c.Reachable()
	var out []*ir.Block
	for _, b := range c.Func.Blocks {
		if !reach[b] {
			out = append(out, b)
		}
	}
	return out
}

func (c *CFG) blockOf(n graph.Node) *ir.Block {
	if bn, ok := n.(blockNode); ok {
		return bn.block
	}
	return c.Func.Blocks[n.ID()]
}

// MarkExecuted records which blocks an analysis executed; the others are
// drawn dashed by PrintDot.
func (c *CFG) MarkExecuted(executed map[*ir.Block]bool) {
	c.dashed = make(map[*ir.Block]bool)
	for _, b := range c.Func.Blocks {
		if !executed[b] {
			c.dashed[b] = true
		}
	}
}

// PrintDot writes the graph in GraphViz DOT syntax.
func (c *CFG) PrintDot(w io.Writer) error {
	data, err := dot.MarshalMulti(c.graph, c.Func.Name, "", "\t")
	if err != nil {
		return fmt.Errorf("marshal cfg of %s: %w", c.Func.Name, err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// RenderToGraphVizFile renders DOT source to filename with the GraphViz dot
// tool. The output format follows the file extension and defaults to svg.
func RenderToGraphVizFile(data []byte, filename string) error {
	format := strings.TrimPrefix(filepath.Ext(filename), ".")
	if format == "" {
		format = "svg"
	}
	cmd := exec.Command("dot", "-T"+format, "-o", filename)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("dot: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
