package constprop

import (
	"sort"

	"github.com/gnolang/cprop/internal/ir"
)

// Entry is one constant found at the exit of a block.
type Entry struct {
	Line  int    `json:"line"`
	Slot  string `json:"slot"`
	Value int64  `json:"value"`
}

// BlockReport lists the constants at the exit of one block, by line.
type BlockReport struct {
	Block     string  `json:"block"`
	Executed  bool    `json:"executed"`
	Constants []Entry `json:"constants"`
}

// Report is the per-block constant table of a function.
type Report struct {
	Function string        `json:"function"`
	Blocks   []BlockReport `json:"blocks"`
}

// Report builds the constant table from the converged OUT states. Only
// slots holding a definite constant are listed.
func (r *Result) Report() Report {
	report := Report{Function: r.Func.Name}
	for _, b := range r.Func.Blocks {
		br := BlockReport{Block: b.Name, Executed: r.Executed[b], Constants: []Entry{}}
		for slot, v := range r.Out[b] {
			k, ok := v.Int()
			if !ok {
				continue
			}
			br.Constants = append(br.Constants, Entry{
				Line:  r.lines[slot],
				Slot:  r.Func.SlotName(slot),
				Value: k,
			})
		}
		sort.Slice(br.Constants, func(i, j int) bool {
			a, b := br.Constants[i], br.Constants[j]
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			return a.Slot < b.Slot
		})
		report.Blocks = append(report.Blocks, br)
	}
	return report
}

// Run analyses fn, rewrites it in place and returns the analysis result,
// whose Report reflects the states computed before rewriting.
func Run(fn *ir.Function, opts Options) (*Result, RewriteSummary) {
	res := Analyze(fn, opts)
	return res, Rewrite(res, opts)
}
