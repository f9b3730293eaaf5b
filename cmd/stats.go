package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hexebench/hexebench/internal/config"
	"github.com/hexebench/hexebench/internal/report"
	"github.com/hexebench/hexebench/internal/result"
	"github.com/spf13/cobra"
)

var flagFormat string

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <run-id>",
		Short: "Generate summary from stored results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			runID := args[0]
			runDir := filepath.Join(cfg.Results.Dir, runID)
			dbPath := result.DBPath(runDir, runID)
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("no results database for run %s: %s", runID, dbPath)
			}
			store, err := result.OpenStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			return report.Generate(store, runID, flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
