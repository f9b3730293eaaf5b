package result

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed sink for judged records and task outcomes.
// Every write is an idempotent upsert keyed by (run_id, model, run), so
// at-least-once delivery after a restart is safe.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and migrates) the database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	// SQLite supports a single writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating db: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		model TEXT NOT NULL,
		run INTEGER NOT NULL,
		gewuenscht TEXT,
		bekommen TEXT,
		phonetische_aehnlichkeit INTEGER,
		anzueglichkeit INTEGER,
		logik INTEGER,
		kreativitaet INTEGER,
		gesamt INTEGER,
		prompt_tokens INTEGER,
		completion_tokens INTEGER,
		cost_usd REAL,
		ts TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_model ON records(model);

	CREATE TABLE IF NOT EXISTS outcomes (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		model TEXT NOT NULL,
		run INTEGER NOT NULL,
		kind TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		error TEXT,
		ts TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func recordID(runID, model string, run int) string {
	return fmt.Sprintf("%s_%s_%d", runID, model, run)
}

// UpsertRecord inserts or replaces a judged record.
func (s *Store) UpsertRecord(runID string, rec *Record) error {
	_, err := s.db.Exec(`
		INSERT INTO records (
			id, run_id, model, run, gewuenscht, bekommen,
			phonetische_aehnlichkeit, anzueglichkeit, logik, kreativitaet, gesamt,
			prompt_tokens, completion_tokens, cost_usd, ts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			gewuenscht=excluded.gewuenscht,
			bekommen=excluded.bekommen,
			phonetische_aehnlichkeit=excluded.phonetische_aehnlichkeit,
			anzueglichkeit=excluded.anzueglichkeit,
			logik=excluded.logik,
			kreativitaet=excluded.kreativitaet,
			gesamt=excluded.gesamt,
			prompt_tokens=excluded.prompt_tokens,
			completion_tokens=excluded.completion_tokens,
			cost_usd=excluded.cost_usd,
			ts=excluded.ts`,
		recordID(runID, rec.Generation.Model, rec.Generation.Run),
		runID,
		rec.Generation.Model,
		rec.Generation.Run,
		rec.Generation.Summary.Gewuenscht,
		rec.Generation.Summary.Bekommen,
		rec.Judge.PhonetischeAehnlichkeit,
		rec.Judge.Anzueglichkeit,
		rec.Judge.Logik,
		rec.Judge.Kreativitaet,
		rec.Judge.Gesamt,
		rec.Generation.PromptTokens,
		rec.Generation.CompletionTokens,
		rec.Generation.CostUSD,
		rec.Generation.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting record: %w", err)
	}
	return nil
}

// SaveOutcome persists the terminal outcome of one work item, success or
// failure, so no attempted unit of work is lost even when it produced no
// record. kind is empty for success.
func (s *Store) SaveOutcome(runID, model string, run int, kind string, attempts int, errMsg string) error {
	if kind == "" {
		kind = "success"
	}
	_, err := s.db.Exec(`
		INSERT INTO outcomes (id, run_id, model, run, kind, attempts, error, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind,
			attempts=excluded.attempts,
			error=excluded.error,
			ts=excluded.ts`,
		recordID(runID, model, run), runID, model, run, kind, attempts, errMsg,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving outcome: %w", err)
	}
	return nil
}

// Rows reads back every judged record for a run, for reporting.
func (s *Store) Rows(runID string) ([]Row, error) {
	rows, err := s.db.Query(`
		SELECT run_id, model, run, gesamt, prompt_tokens, completion_tokens, cost_usd
		FROM records WHERE run_id = ? ORDER BY model, run`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.RunID, &r.Model, &r.Run, &r.Gesamt, &r.PromptTokens, &r.CompletionTokens, &r.CostUSD); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OutcomeCounts returns the number of stored outcomes per kind for a run.
func (s *Store) OutcomeCounts(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM outcomes WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// DBPath returns the conventional database path for a run directory.
func DBPath(runDir, runID string) string {
	return filepath.Join(runDir, runID+"_benchmark_data.sqlite")
}
