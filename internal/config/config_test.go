package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hexebench/hexebench/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hexebench.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimal = `api_key: test-key
models:
  - name: mistralai/mistral-7b-instruct
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("base_url default = %q", cfg.BaseURL)
	}
	if cfg.JudgeModel != "openai/gpt-4o" {
		t.Errorf("judge_model default = %q", cfg.JudgeModel)
	}
	if cfg.Models[0].Temperature != 0.8 {
		t.Errorf("temperature default = %g", cfg.Models[0].Temperature)
	}
	if cfg.Budget.MaxUSD != 100 || cfg.Budget.WarnFraction != 0.9 {
		t.Errorf("budget defaults = %+v", cfg.Budget)
	}
	if cfg.RateLimit.GlobalPerMinute != 60 || cfg.RateLimit.PerModelConcurrency != 2 {
		t.Errorf("rate limit defaults = %+v", cfg.RateLimit)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("concurrency default = %d", cfg.Concurrency)
	}
	if cfg.HTTP.ConnectTimeoutS != 5 || cfg.HTTP.ReadTimeoutS != 90 {
		t.Errorf("http defaults = %+v", cfg.HTTP)
	}
	if cfg.Results.Dir != "benchmarks" {
		t.Errorf("results dir default = %q", cfg.Results.Dir)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	_, err := config.Load(writeConfig(t, minimal+"max_budget: 5\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("HEXEBENCH_API_KEY", "env-key")
	cfg, err := config.Load(writeConfig(t, "models:\n  - name: m\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("api_key = %q, want env-key", cfg.APIKey)
	}
}

func TestValidationErrors(t *testing.T) {
	t.Setenv("HEXEBENCH_API_KEY", "")
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"missing api key", "models:\n  - name: m\n", "api_key"},
		{"no models", "api_key: k\n", "no candidate models"},
		{"unnamed model", "api_key: k\nmodels:\n  - temperature: 0.5\n", "name is required"},
		{"temperature range", "api_key: k\nmodels:\n  - name: m\n    temperature: 3\n", "temperature"},
		{"negative budget", minimal + "budget:\n  max_usd: -1\n", "max_usd"},
		{"zero rate", minimal + "rate_limit:\n  global_per_minute: -2\n", "global_per_minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("got %v, want message containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestModelByName(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.ModelByName("mistralai/mistral-7b-instruct"); !ok {
		t.Error("configured model not found")
	}
	if _, ok := cfg.ModelByName("nope"); ok {
		t.Error("unknown model found")
	}
}

func TestRedacted(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Redacted().APIKey != "" {
		t.Error("redacted config still carries the api key")
	}
	if cfg.APIKey == "" {
		t.Error("redaction mutated the original")
	}
}
