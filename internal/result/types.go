package result

import (
	"github.com/hexebench/hexebench/internal/generate"
	"github.com/hexebench/hexebench/internal/judge"
)

// Record is one fully judged benchmark sample.
type Record struct {
	Generation generate.Generation `json:"generation"`
	Judge      judge.Score         `json:"judge"`
}

// Row is the flat per-record shape read back for reporting.
type Row struct {
	RunID            string
	Model            string
	Run              int
	Gesamt           int
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}
