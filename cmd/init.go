package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnolang/cprop/driver"
)

// initCmd: cprop init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = driver.DefaultConfigPath
		}
		if err := driver.WriteConfig(path, driver.DefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", path)
		return nil
	},
}
