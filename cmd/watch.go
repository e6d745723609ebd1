package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cprop/driver"
	"github.com/gnolang/cprop/internal"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Re-run the pass whenever an IR file changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("please provide directories to watch")
		}

		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		engine, err := driver.NewFromConfig(config, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		engine.OnResult = func(res *internal.FileResult, err error) {
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				return
			}
			if err := printResults(out, []*internal.FileResult{res}, config.Output.Format, ""); err != nil {
				logger.Error("Error printing results", zap.Error(err))
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := engine.StartWatching(ctx, args...); err != nil {
			return err
		}
		fmt.Fprintf(out, "Watching %d director(ies) for IR changes, press Ctrl+C to stop\n", len(args))

		<-ctx.Done()
		return engine.StopWatching()
	},
}
