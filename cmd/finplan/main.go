package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "finplan",
		Short:         "Deterministic portfolio projections for personal financial plans",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "warn", "engine log level (debug, info, warn, error)")

	root.AddCommand(
		newProjectCmd(),
		newCompareCmd(),
		newExampleCmd(),
		newValidateCmd(),
		newServeCmd(),
	)
	return root
}
