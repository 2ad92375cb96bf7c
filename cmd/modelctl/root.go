package main

import (
	"github.com/okian/regpredict/pkg/logger"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:          "modelctl",
		Short:        "Create and inspect prediction model files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return err
			}
			return logger.SetLevelString(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newCreateCmd(), newInspectCmd())
	return root
}
