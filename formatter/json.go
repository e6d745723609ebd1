package formatter

import (
	"encoding/json"

	"github.com/gnolang/cprop/internal"
	"github.com/gnolang/cprop/internal/analysis/constprop"
)

type jsonFile struct {
	File      string         `json:"file,omitempty"`
	Functions []jsonFunction `json:"functions"`
}

type jsonFunction struct {
	constprop.Report
	Unreachable []string                 `json:"unreachable,omitempty"`
	Summary     constprop.RewriteSummary `json:"summary"`
	Stats       constprop.Stats          `json:"stats"`
}

// GenerateJSON renders results as an indented JSON array, one object per file.
func GenerateJSON(results []*internal.FileResult) ([]byte, error) {
	files := make([]jsonFile, 0, len(results))
	for _, res := range results {
		f := jsonFile{File: res.Filename, Functions: []jsonFunction{}}
		for _, fn := range res.Functions {
			f.Functions = append(f.Functions, jsonFunction{
				Report:      fn.Report,
				Unreachable: fn.Unreachable,
				Summary:     fn.Summary,
				Stats:       fn.Stats,
			})
		}
		files = append(files, f)
	}
	return json.MarshalIndent(files, "", "  ")
}
