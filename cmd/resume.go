package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/hexebench/hexebench/internal/bench"
	"github.com/hexebench/hexebench/internal/config"
	"github.com/hexebench/hexebench/internal/report"
	"github.com/spf13/cobra"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Judge raw generations that have no judged record yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			runID := args[0]
			runDir := filepath.Join(cfg.Results.Dir, runID)
			if _, err := os.Stat(runDir); err != nil {
				return fmt.Errorf("run %s not found under %s", runID, cfg.Results.Dir)
			}

			opts, closeStore, err := buildOptions(cfg, runID, runDir)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			summary, err := bench.Resume(ctx, opts)
			if err != nil {
				return err
			}
			if summary.Total == 0 {
				fmt.Println("Nothing to resume: every generation is judged.")
				return nil
			}
			printSummary(summary)

			fmt.Println("\n--- Results ---")
			return report.Generate(opts.Store, runID, "table", os.Stdout)
		},
	}
}
