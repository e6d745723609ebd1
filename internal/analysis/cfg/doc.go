// # Description
//
// Package cfg provides a graph view over the basic blocks of an ir.Function.
//
// ## Control Flow Graph (CFG)
//
// A CFG is a representation, using graph notation, of all paths that might be traversed
// through a function during its execution. In a CFG:
//
//   - Each node in the graph represents a basic block (a straight-line piece of code without any jumps).
//   - The directed edges represent jumps in the control flow. Conditional branches carry
//     a T (taken) or F (not taken) label.
//
// The graph is backed by gonum's multigraph so that self loops and a conditional
// branch whose two targets coincide are both representable.
//
// ## Package Functionality
//
//  1. CFG Construction: use `FromFunction` to build the graph of a function.
//  2. Structural reachability from the entry block with `Reachable` and `Unreachable`.
//  3. DOT export with `PrintDot` and rendering through GraphViz with `RenderToGraphVizFile`.
package cfg
