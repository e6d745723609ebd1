package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cprop/driver"
	"github.com/gnolang/cprop/formatter"
	"github.com/gnolang/cprop/internal"
	"github.com/gnolang/cprop/internal/irfile"
)

var (
	runJSONOutput bool
	runOutPath    string
	runWrite      bool
	runCleanup    bool
	runDivZero    string
	runListing    bool
	ignoreFuncs   string
)

var runCmd = &cobra.Command{
	Use:   "run [paths...]",
	Short: "Propagate constants through IR files and report them",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("please provide file or directory paths")
		}

		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		engine, err := driver.NewFromConfig(config, logger)
		if err != nil {
			return err
		}
		for _, name := range splitList(ignoreFuncs) {
			engine.IgnoreFunction(name)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		results, err := driver.ProcessFiles(ctx, logger, engine, args, driver.ProcessFile)
		if err != nil {
			logger.Error("Error processing files", zap.Error(err))
			return err
		}

		if runWrite {
			for _, res := range results {
				if err := writeBack(res); err != nil {
					return err
				}
			}
		}

		return printResults(cmd.OutOrStdout(), results, config.Output.Format, runOutPath)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runJSONOutput, "json", false, "Output reports in JSON format")
	runCmd.Flags().StringVarP(&runOutPath, "output", "o", "", "Output path (default stdout)")
	runCmd.Flags().BoolVar(&runWrite, "write", false, "Write the rewritten functions back to their files")
	runCmd.Flags().BoolVar(&runCleanup, "cleanup", false, "Remove dead instructions after rewriting")
	runCmd.Flags().StringVar(&runDivZero, "div-zero", "", "Division by a known zero: zero or bottom")
	runCmd.Flags().BoolVar(&runListing, "print", false, "Print the rewritten functions after the report")
	runCmd.Flags().StringVar(&ignoreFuncs, "ignore", "", "Comma-separated list of functions to skip")

	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}

// loadConfig reads the configuration file and applies the flags that were
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command) (driver.Config, error) {
	config, err := driver.LoadConfig(cfgFile)
	if err != nil {
		return config, err
	}

	if cmd.Flags().Changed("cleanup") {
		config.Options.Cleanup = runCleanup
	}
	if cmd.Flags().Changed("div-zero") {
		config.Options.DivisionByZero = runDivZero
	}
	if runJSONOutput {
		config.Output.Format = driver.FormatJSON
	}
	return config, config.Validate()
}

func printResults(stdout io.Writer, results []*internal.FileResult, format, outPath string) error {
	var w io.Writer = stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("error creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == driver.FormatJSON {
		d, err := formatter.GenerateJSON(results)
		if err != nil {
			return fmt.Errorf("error marshalling reports to JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(d))
		return err
	}

	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprint(w, formatter.GenerateFormattedReport(res))
		if runListing {
			fmt.Fprintln(w)
			fmt.Fprint(w, formatter.GenerateListing(res))
		}
	}
	return nil
}

// writeBack replaces the processed functions of the file with their
// rewritten form. Skipped functions and comments outside the rewritten
// functions are kept as written.
func writeBack(res *internal.FileResult) error {
	src, err := os.ReadFile(res.Filename)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", res.Filename, err)
	}

	rewritten := make(map[string]irfile.Function, len(res.Functions))
	for _, fn := range res.Functions {
		rewritten[fn.Function.Name] = irfile.FromFunction(fn.Function)
	}

	var buf bytes.Buffer
	if err := irfile.ReplaceFunctions(src, &buf, rewritten); err != nil {
		return fmt.Errorf("%s: %w", res.Filename, err)
	}
	if err := os.WriteFile(res.Filename, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", res.Filename, err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
