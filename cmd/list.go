package cmd

import (
	"fmt"

	"github.com/hexebench/hexebench/internal/config"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show configured candidate models and the judge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Println("Candidate models:")
			for _, m := range cfg.Models {
				line := fmt.Sprintf("  - %s (temperature %.2f", m.Name, m.Temperature)
				if m.MaxTokens > 0 {
					line += fmt.Sprintf(", max_tokens %d", m.MaxTokens)
				}
				fmt.Println(line + ")")
			}
			fmt.Printf("\nJudge: %s\n", cfg.JudgeModel)
			return nil
		},
	}
}
