package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "poolz",
		Short: "Work-stealing task pool demos",
		Long: `poolz is a CLI tool for exploring the poolz work-stealing task pool
through runnable demonstrations.

The demo seeds a small number of root tasks that grow the workload as
they run, then drives the pool to quiescence twice, showing how steals
spread a self-expanding workload across workers.`,
		Version: version,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(demoCmd)
}
