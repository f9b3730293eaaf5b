// Package report aggregates judged records into per-model summaries.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/hexebench/hexebench/internal/result"
)

type ModelSummary struct {
	Model        string  `json:"model"`
	Runs         int     `json:"runs"`
	MeanGesamt   float64 `json:"mean_gesamt"`
	MinGesamt    int     `json:"min_gesamt"`
	MaxGesamt    int     `json:"max_gesamt"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// Generate reads a run's records from the store and writes a summary in the
// requested format: "table" (default), "markdown", or "json".
func Generate(store *result.Store, runID, format string, w io.Writer) error {
	rows, err := store.Rows(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, "no judged records for run %s\n", runID)
		return err
	}

	return Write(Aggregate(rows), format, w)
}

// Write renders summaries in the given format.
func Write(summaries []ModelSummary, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

// Aggregate groups rows by model.
func Aggregate(rows []result.Row) []ModelSummary {
	type accum struct {
		count    int
		sum      int
		min, max int
		tokens   int
		cost     float64
	}
	byModel := map[string]*accum{}

	for _, r := range rows {
		a, ok := byModel[r.Model]
		if !ok {
			a = &accum{min: r.Gesamt, max: r.Gesamt}
			byModel[r.Model] = a
		}
		a.count++
		a.sum += r.Gesamt
		if r.Gesamt < a.min {
			a.min = r.Gesamt
		}
		if r.Gesamt > a.max {
			a.max = r.Gesamt
		}
		a.tokens += r.PromptTokens + r.CompletionTokens
		a.cost += r.CostUSD
	}

	var summaries []ModelSummary
	for model, a := range byModel {
		summaries = append(summaries, ModelSummary{
			Model:        model,
			Runs:         a.count,
			MeanGesamt:   float64(a.sum) / float64(a.count),
			MinGesamt:    a.min,
			MaxGesamt:    a.max,
			TotalTokens:  a.tokens,
			TotalCostUSD: a.cost,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Model < summaries[j].Model
	})
	return summaries
}

func writeTable(summaries []ModelSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tRUNS\tMEAN\tMIN\tMAX\tTOKENS\tCOST")
	fmt.Fprintln(tw, strings.Repeat("-", 72))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%d\t%d\t%d\t$%.4f\n",
			s.Model, s.Runs, s.MeanGesamt, s.MinGesamt, s.MaxGesamt, s.TotalTokens, s.TotalCostUSD)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []ModelSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Model | Runs | Mean | Min | Max | Tokens | Cost |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %.1f | %d | %d | %d | $%.4f |\n",
			s.Model, s.Runs, s.MeanGesamt, s.MinGesamt, s.MaxGesamt, s.TotalTokens, s.TotalCostUSD)
	}
	return nil
}

func writeJSON(summaries []ModelSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
