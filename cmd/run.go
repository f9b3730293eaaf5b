package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/hexebench/hexebench/internal/bench"
	"github.com/hexebench/hexebench/internal/budget"
	"github.com/hexebench/hexebench/internal/config"
	"github.com/hexebench/hexebench/internal/generate"
	"github.com/hexebench/hexebench/internal/judge"
	"github.com/hexebench/hexebench/internal/pricing"
	"github.com/hexebench/hexebench/internal/ratelimit"
	"github.com/hexebench/hexebench/internal/report"
	"github.com/hexebench/hexebench/internal/result"
	"github.com/hexebench/hexebench/internal/retry"
	"github.com/hexebench/hexebench/internal/router"
	"github.com/hexebench/hexebench/internal/runner"
	"github.com/spf13/cobra"
)

var (
	flagModels     []string
	flagIterations int
	flagRunID      string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a benchmark run",
		RunE:  runBenchmark,
	}
	cmd.Flags().StringArrayVarP(&flagModels, "model", "m", nil, "restrict to a configured model (repeatable)")
	cmd.Flags().IntVarP(&flagIterations, "iterations", "n", 3, "runs per model")
	cmd.Flags().StringVar(&flagRunID, "run-id", "", "reuse an explicit run id instead of generating one")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagIterations < 1 {
		return fmt.Errorf("iterations must be at least 1")
	}
	models, err := filterModels(cfg, flagModels)
	if err != nil {
		return err
	}

	runID := flagRunID
	if runID == "" {
		runID = result.NewRunID(time.Now())
	}
	runDir, err := result.CreateRunDir(cfg.Results.Dir, runID)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	opts, closeStore, err := buildOptions(cfg, runID, runDir)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	summary, err := bench.Run(ctx, opts, models, flagIterations)
	if err != nil {
		return err
	}
	printSummary(summary)

	fmt.Println("\n--- Results ---")
	return report.Generate(opts.Store, runID, "table", os.Stdout)
}

// buildOptions assembles the shared ledger, governor, client, and store for
// one run. The returned func closes the store.
func buildOptions(cfg *config.Config, runID, runDir string) (*bench.Options, func(), error) {
	prices := &pricing.Table{}
	if cfg.PricingFile != "" {
		loaded, err := pricing.Load(cfg.PricingFile)
		if err != nil {
			return nil, nil, err
		}
		prices = loaded
	}

	ledger := budget.New(cfg.Budget.MaxUSD, cfg.Budget.WarnFraction)
	client := router.New(router.Options{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		ConnectTimeout: time.Duration(cfg.HTTP.ConnectTimeoutS) * time.Second,
		ReadTimeout:    time.Duration(cfg.HTTP.ReadTimeoutS) * time.Second,
		Governor:       ratelimit.New(cfg.RateLimit.GlobalPerMinute, cfg.RateLimit.PerModelConcurrency),
		Policy:         retry.NewPolicy(),
		Ledger:         ledger,
		Prices:         prices,
	})

	prompt, err := generate.LoadPrompt(cfg.Prompts.Benchmark)
	if err != nil {
		return nil, nil, err
	}
	tmpl, err := judge.LoadTemplate(cfg.Prompts.Judge)
	if err != nil {
		return nil, nil, err
	}

	store, err := result.OpenStore(result.DBPath(runDir, runID))
	if err != nil {
		return nil, nil, err
	}

	opts := &bench.Options{
		Config:        cfg,
		RunID:         runID,
		RunDir:        runDir,
		Client:        client,
		Store:         store,
		Runner:        runner.New(ledger, cfg.Concurrency),
		Prompt:        prompt,
		JudgeTemplate: tmpl,
	}
	return opts, func() { store.Close() }, nil
}

// filterModels resolves the -m flags against the configured models. No flags
// means every configured model; an unknown name is an error, not a no-op.
func filterModels(cfg *config.Config, names []string) ([]config.Model, error) {
	if len(names) == 0 {
		return cfg.Models, nil
	}
	var models []config.Model
	for _, name := range names {
		m, ok := cfg.ModelByName(name)
		if !ok {
			return nil, fmt.Errorf("model %q is not configured", name)
		}
		models = append(models, m)
	}
	return models, nil
}

func printSummary(s runner.Summary) {
	fmt.Printf("\n%d tasks, %d succeeded, state %s, $%.4f spent\n",
		s.Total, s.Succeeded, s.State, s.SpentUSD)
	if len(s.FailuresByKind) == 0 {
		return
	}
	kinds := make([]string, 0, len(s.FailuresByKind))
	for k := range s.FailuresByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("  %s: %d\n", k, s.FailuresByKind[retry.Kind(k)])
	}
}
