package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hexebench",
		Short: "Benchmark harness for phonetic wordplay generation and judging",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "hexebench.yaml", "config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newResumeCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newListCmd())
	return root
}
