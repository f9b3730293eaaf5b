// Package result persists every benchmark outcome durably: raw generations
// and judged records as JSON files, a per-run cost report, and a SQLite
// database for aggregate queries. All writes are keyed by
// (run_id, model, run) and safe to repeat.
package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hexebench/hexebench/internal/config"
	"github.com/hexebench/hexebench/internal/generate"
)

// NewRunID produces a sortable run identifier with a short random suffix.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("run_%s_%s", now.UTC().Format("20060102_150405"), uuid.NewString()[:8])
}

// CreateRunDir creates <baseDir>/<runID> with its raw/ and judged/
// subdirectories and returns the absolute run directory.
func CreateRunDir(baseDir, runID string) (string, error) {
	runDir, err := filepath.Abs(filepath.Join(baseDir, runID))
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	for _, sub := range []string{"raw", "judged"} {
		if err := os.MkdirAll(filepath.Join(runDir, sub), 0o755); err != nil {
			return "", fmt.Errorf("creating run dir: %w", err)
		}
	}
	return runDir, nil
}

// SafeModelFilename flattens a model identifier into a filesystem-safe name
// for its per-run JSON file.
func SafeModelFilename(model string, run int) string {
	safe := strings.NewReplacer("/", "_", ":", "_").Replace(model)
	return fmt.Sprintf("%s_%d.json", safe, run)
}

// SaveGeneration writes a raw generation to raw/ and appends its line to the
// cost report. Rewriting the same (model, run) overwrites in place.
func SaveGeneration(runDir string, gen *generate.Generation) (string, error) {
	path := filepath.Join(runDir, "raw", SafeModelFilename(gen.Model, gen.Run))
	if err := writeJSON(path, gen); err != nil {
		return "", err
	}
	if err := appendCostReport(runDir, gen); err != nil {
		return "", err
	}
	return path, nil
}

// SaveRecord writes a judged record to judged/.
func SaveRecord(runDir string, rec *Record) (string, error) {
	path := filepath.Join(runDir, "judged", SafeModelFilename(rec.Generation.Model, rec.Generation.Run))
	if err := writeJSON(path, rec); err != nil {
		return "", err
	}
	return path, nil
}

// HasRecord reports whether a judged record already exists for the pair.
// Resume uses this to skip already-judged generations.
func HasRecord(runDir, model string, run int) bool {
	_, err := os.Stat(filepath.Join(runDir, "judged", SafeModelFilename(model, run)))
	return err == nil
}

// LoadGenerations reads every raw generation in the run directory.
func LoadGenerations(runDir string) ([]generate.Generation, error) {
	paths, err := filepath.Glob(filepath.Join(runDir, "raw", "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing raw generations: %w", err)
	}
	var gens []generate.Generation
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var gen generate.Generation
		if err := json.Unmarshal(data, &gen); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		gens = append(gens, gen)
	}
	return gens, nil
}

// WriteMeta records the run id, creation time, and a redacted config
// snapshot alongside the results.
func WriteMeta(runDir, runID string, cfg *config.Config) error {
	payload := struct {
		RunID     string        `json:"run_id"`
		CreatedAt time.Time     `json:"created_at"`
		Config    config.Config `json:"config"`
	}{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Config:    cfg.Redacted(),
	}
	return writeJSON(filepath.Join(runDir, "meta.json"), payload)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

var costReportHeader = []string{"timestamp", "run_id", "model", "run", "cost_usd", "prompt_tokens", "completion_tokens"}

// costReportMu serializes appends: concurrent tasks save generations at the
// same time, and the stat-then-write header logic must not interleave.
var costReportMu sync.Mutex

func appendCostReport(runDir string, gen *generate.Generation) error {
	costReportMu.Lock()
	defer costReportMu.Unlock()

	path := filepath.Join(runDir, "cost_report.csv")
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening cost report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if os.IsNotExist(statErr) {
		if err := w.Write(costReportHeader); err != nil {
			return fmt.Errorf("writing cost report header: %w", err)
		}
	}
	row := []string{
		gen.Timestamp.Format(time.RFC3339),
		filepath.Base(runDir),
		gen.Model,
		strconv.Itoa(gen.Run),
		strconv.FormatFloat(gen.CostUSD, 'f', 8, 64),
		strconv.Itoa(gen.PromptTokens),
		strconv.Itoa(gen.CompletionTokens),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing cost report row: %w", err)
	}
	w.Flush()
	return w.Error()
}
