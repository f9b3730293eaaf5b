package report_test

import (
	"strings"
	"testing"

	"github.com/hexebench/hexebench/internal/report"
	"github.com/hexebench/hexebench/internal/result"
)

func testRows() []result.Row {
	return []result.Row{
		{RunID: "r", Model: "a", Run: 1, Gesamt: 60, PromptTokens: 100, CompletionTokens: 50, CostUSD: 0.01},
		{RunID: "r", Model: "a", Run: 2, Gesamt: 80, PromptTokens: 100, CompletionTokens: 50, CostUSD: 0.02},
		{RunID: "r", Model: "b", Run: 1, Gesamt: 90, PromptTokens: 200, CompletionTokens: 100, CostUSD: 0.05},
	}
}

func TestAggregate(t *testing.T) {
	summaries := report.Aggregate(testRows())
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}
	a := summaries[0]
	if a.Model != "a" || a.Runs != 2 || a.MeanGesamt != 70 || a.MinGesamt != 60 || a.MaxGesamt != 80 {
		t.Errorf("summary a = %+v", a)
	}
	if a.TotalTokens != 300 {
		t.Errorf("tokens = %d, want 300", a.TotalTokens)
	}
	if diff := a.TotalCostUSD - 0.03; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost = %f, want 0.03", a.TotalCostUSD)
	}
}

func TestWriteFormats(t *testing.T) {
	summaries := report.Aggregate(testRows())
	for _, format := range []string{"table", "markdown", "json"} {
		t.Run(format, func(t *testing.T) {
			var sb strings.Builder
			if err := report.Write(summaries, format, &sb); err != nil {
				t.Fatalf("Write(%s): %v", format, err)
			}
			out := sb.String()
			if !strings.Contains(out, "a") || !strings.Contains(out, "b") {
				t.Errorf("%s output missing models: %q", format, out)
			}
		})
	}
}
