package result_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hexebench/hexebench/internal/config"
	"github.com/hexebench/hexebench/internal/generate"
	"github.com/hexebench/hexebench/internal/judge"
	"github.com/hexebench/hexebench/internal/result"
)

func sampleGeneration(model string, run int) *generate.Generation {
	return &generate.Generation{
		Model:            model,
		Run:              run,
		Summary:          generate.Summary{Gewuenscht: "Bier", Bekommen: "Stier"},
		FullResponse:     "der Witz",
		PromptTokens:     100,
		CompletionTokens: 50,
		CostUSD:          0.0123,
		Timestamp:        time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewRunID(t *testing.T) {
	id := result.NewRunID(time.Date(2026, 8, 30, 12, 30, 45, 0, time.UTC))
	if !strings.HasPrefix(id, "run_20260830_123045_") {
		t.Errorf("run id = %q", id)
	}
	if id == result.NewRunID(time.Date(2026, 8, 30, 12, 30, 45, 0, time.UTC)) {
		t.Error("two run ids with the same timestamp collided")
	}
}

func TestCreateRunDirLayout(t *testing.T) {
	runDir, err := result.CreateRunDir(t.TempDir(), "run_x")
	if err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"raw", "judged"} {
		if fi, err := os.Stat(filepath.Join(runDir, sub)); err != nil || !fi.IsDir() {
			t.Errorf("missing %s/: %v", sub, err)
		}
	}
}

func TestSafeModelFilename(t *testing.T) {
	got := result.SafeModelFilename("openai/gpt-4o:mini", 3)
	if got != "openai_gpt-4o_mini_3.json" {
		t.Errorf("filename = %q", got)
	}
}

func TestSaveGenerationAndCostReport(t *testing.T) {
	runDir, err := result.CreateRunDir(t.TempDir(), "run_x")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := result.SaveGeneration(runDir, sampleGeneration("a/m", 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := result.SaveGeneration(runDir, sampleGeneration("a/m", 2)); err != nil {
		t.Fatal(err)
	}

	gens, err := result.LoadGenerations(runDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 2 {
		t.Fatalf("loaded %d generations, want 2", len(gens))
	}
	if gens[0].Summary.Gewuenscht != "Bier" {
		t.Errorf("round-tripped summary = %+v", gens[0].Summary)
	}

	f, err := os.Open(filepath.Join(runDir, "cost_report.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 { // header + 2 entries
		t.Fatalf("cost report rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[1][2] != "a/m" {
		t.Errorf("cost report = %v", rows)
	}
}

func TestCostReportConcurrentAppends(t *testing.T) {
	runDir, err := result.CreateRunDir(t.TempDir(), "run_x")
	if err != nil {
		t.Fatal(err)
	}

	const n = 8
	var wg sync.WaitGroup
	for run := 1; run <= n; run++ {
		wg.Add(1)
		go func(run int) {
			defer wg.Done()
			if _, err := result.SaveGeneration(runDir, sampleGeneration("a/m", run)); err != nil {
				t.Errorf("SaveGeneration run %d: %v", run, err)
			}
		}(run)
	}
	wg.Wait()

	f, err := os.Open(filepath.Join(runDir, "cost_report.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("cost report is not valid csv: %v", err)
	}
	if len(rows) != n+1 {
		t.Fatalf("cost report rows = %d, want %d", len(rows), n+1)
	}
	headers := 0
	for _, row := range rows {
		if row[0] == "timestamp" {
			headers++
		}
	}
	if headers != 1 {
		t.Errorf("header rows = %d, want exactly 1", headers)
	}
}

func TestSaveRecordAndHasRecord(t *testing.T) {
	runDir, err := result.CreateRunDir(t.TempDir(), "run_x")
	if err != nil {
		t.Fatal(err)
	}
	rec := &result.Record{
		Generation: *sampleGeneration("a/m", 1),
		Judge:      judge.Score{Gesamt: 80, Begruendung: map[string]string{}},
	}
	if result.HasRecord(runDir, "a/m", 1) {
		t.Error("record reported present before save")
	}
	if _, err := result.SaveRecord(runDir, rec); err != nil {
		t.Fatal(err)
	}
	if !result.HasRecord(runDir, "a/m", 1) {
		t.Error("record reported absent after save")
	}
}

func TestWriteMetaRedactsKey(t *testing.T) {
	runDir, err := result.CreateRunDir(t.TempDir(), "run_x")
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{APIKey: "secret", Models: []config.Model{{Name: "m"}}}
	if err := result.WriteMeta(runDir, "run_x", cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(runDir, "meta.json"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("meta.json leaked the api key")
	}
	if !strings.Contains(string(data), "run_x") {
		t.Error("meta.json missing run id")
	}
}
