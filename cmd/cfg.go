package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cprop/internal/analysis/cfg"
	"github.com/gnolang/cprop/internal/analysis/constprop"
	"github.com/gnolang/cprop/internal/ir"
	"github.com/gnolang/cprop/internal/irfile"
)

// variable for flags
var (
	funcName string
	output   string
)

var cfgCmd = &cobra.Command{
	Use:   "cfg [paths...]",
	Short: "Print the control flow graph of a function",
	Long: `Outputs the control flow graph of the named function in DOT syntax or renders it with GraphViz.
Blocks the analysis never executes are drawn dashed.
Example) cprop cfg --func main prog.ir.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("please provide IR file paths")
		}
		if funcName == "" {
			return errors.New("--func is required")
		}

		fn, path, err := findFunction(args, funcName)
		if err != nil {
			return err
		}

		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts, err := config.PassOptions()
		if err != nil {
			return err
		}

		graph := cfg.FromFunction(fn)
		graph.MarkExecuted(constprop.Analyze(fn, opts).Executed)

		var buf strings.Builder
		if err := graph.PrintDot(&buf); err != nil {
			return err
		}
		if output == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "CFG for function %s in file %s:\n%s", funcName, path, buf.String())
			return nil
		}
		if err := cfg.RenderToGraphVizFile([]byte(buf.String()), output); err != nil {
			logger.Error("Failed to render CFG to GraphViz file", zap.Error(err))
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "GraphViz file created: %s\n", output)
		return nil
	},
}

func init() {
	cfgCmd.Flags().StringVar(&funcName, "func", "", "Function name for CFG analysis")
	cfgCmd.Flags().StringVarP(&output, "output", "o", "", "Output path for rendered GraphViz file")
}

func findFunction(paths []string, name string) (*ir.Function, string, error) {
	for _, path := range paths {
		doc, err := irfile.Load(path)
		if err != nil {
			logger.Error("Failed to load file", zap.String("path", path), zap.Error(err))
			continue
		}
		for _, spec := range doc.Functions {
			if spec.Name != name {
				continue
			}
			fn, err := spec.Build()
			if err != nil {
				return nil, path, err
			}
			if err := fn.Validate(); err != nil {
				return nil, path, err
			}
			return fn, path, nil
		}
	}
	return nil, "", fmt.Errorf("function not found: %s", name)
}
