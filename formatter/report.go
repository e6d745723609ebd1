package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/fatih/color"

	"github.com/gnolang/cprop/internal"
	"github.com/gnolang/cprop/internal/analysis/constprop"
)

var (
	headerStyle  = color.New(color.FgCyan, color.Bold)
	blockStyle   = color.New(color.FgHiBlue, color.Bold)
	lineStyle    = color.New(color.FgHiBlue)
	valueStyle   = color.New(color.FgGreen, color.Bold)
	warningStyle = color.New(color.FgHiYellow, color.Bold)
	summaryStyle = color.New(color.FgWhite)
)

const reportTemplate = `{{header .Name .Filename}}
{{- range .Blocks}}
{{blockHeader .Block}}{{if not .Executed}} {{unexecuted}}{{end}}
{{- range .Constants}}
{{entry .Line .Value}}
{{- end}}
{{- end}}
{{- with .Unreachable}}
{{unreachable .}}
{{- end}}
{{summary .Summary}}
`

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"header":      header,
	"blockHeader": blockHeader,
	"unexecuted":  unexecuted,
	"entry":       entry,
	"unreachable": unreachable,
	"summary":     summary,
}).Parse(reportTemplate))

type reportData struct {
	Name        string
	Filename    string
	Blocks      []constprop.BlockReport
	Unreachable []string
	Summary     constprop.RewriteSummary
}

// GenerateFormattedReport renders the constant table of every function in
// res, one block section after another:
//
//	-----entry-----
//	6:5
//	8:5
func GenerateFormattedReport(res *internal.FileResult) string {
	var builder strings.Builder
	for i, fn := range res.Functions {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(FormatFunctionReport(res.Filename, fn))
	}
	return builder.String()
}

// FormatFunctionReport renders the constant table of a single function.
func FormatFunctionReport(filename string, fn internal.FunctionResult) string {
	data := reportData{
		Name:        fn.Report.Function,
		Filename:    filename,
		Blocks:      fn.Report.Blocks,
		Unreachable: fn.Unreachable,
		Summary:     fn.Summary,
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting report: %v\n", err)
	}
	return buf.String()
}

// GenerateListing renders the rewritten functions of res.
func GenerateListing(res *internal.FileResult) string {
	var builder strings.Builder
	for i, fn := range res.Functions {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fn.Function.String())
	}
	return builder.String()
}

func header(name, filename string) string {
	if filename == "" {
		return headerStyle.Sprintf("function %s", name)
	}
	return headerStyle.Sprintf("function %s", name) + lineStyle.Sprintf(" (%s)", filename)
}

func blockHeader(name string) string {
	return blockStyle.Sprintf("-----%s-----", name)
}

func unexecuted() string {
	return warningStyle.Sprint("(never executed)")
}

func entry(line int, value int64) string {
	return lineStyle.Sprintf("%d", line) + ":" + valueStyle.Sprintf("%d", value)
}

func unreachable(blocks []string) string {
	return warningStyle.Sprintf("unreachable: %s", strings.Join(blocks, ", "))
}

func summary(s constprop.RewriteSummary) string {
	return summaryStyle.Sprintf("folded %d, replaced %d, cleaned %d", s.Folded, s.Replaced, s.Cleaned)
}
