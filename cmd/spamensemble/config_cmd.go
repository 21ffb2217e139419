package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/spamensemble/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := config.DefaultConfig().Save(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "default configuration written to %s\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate the --config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := config.Load(a.configPath); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "configuration is valid")
			return nil
		},
	})
	return cmd
}
