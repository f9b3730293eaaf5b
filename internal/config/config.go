// Package config loads and validates the benchmark run configuration.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey      string    `yaml:"api_key"`
	BaseURL     string    `yaml:"base_url"`
	JudgeModel  string    `yaml:"judge_model"`
	Models      []Model   `yaml:"models"`
	Budget      Budget    `yaml:"budget"`
	RateLimit   RateLimit `yaml:"rate_limit"`
	Concurrency int       `yaml:"concurrency"`
	HTTP        HTTP      `yaml:"http"`
	Results     Results   `yaml:"results"`
	Prompts     Prompts   `yaml:"prompts"`
	PricingFile string    `yaml:"pricing_file"`
}

// Model configures one candidate model. A zero temperature means the default
// of 0.8.
type Model struct {
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type Budget struct {
	MaxUSD       float64 `yaml:"max_usd"`
	WarnFraction float64 `yaml:"warn_fraction"`
}

type RateLimit struct {
	GlobalPerMinute     int `yaml:"global_per_minute"`
	PerModelConcurrency int `yaml:"per_model_concurrency"`
}

type HTTP struct {
	ConnectTimeoutS int `yaml:"connect_timeout_s"`
	ReadTimeoutS    int `yaml:"read_timeout_s"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Prompts struct {
	Benchmark string `yaml:"benchmark"`
	Judge     string `yaml:"judge"`
}

// Load reads the YAML config, applies defaults, and validates. Unknown keys
// are rejected so a misspelled option is never silently ignored. The API key
// can come from the HEXEBENCH_API_KEY environment variable instead of the
// file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if key := os.Getenv("HEXEBENCH_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("api_key is required (or set HEXEBENCH_API_KEY)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.JudgeModel == "" {
		cfg.JudgeModel = "openai/gpt-4o"
	}
	if len(cfg.Models) == 0 {
		return fmt.Errorf("no candidate models defined")
	}
	for i := range cfg.Models {
		m := &cfg.Models[i]
		if m.Name == "" {
			return fmt.Errorf("model %d: name is required", i)
		}
		if m.Temperature == 0 {
			m.Temperature = 0.8
		}
		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q: temperature %g out of range [0, 2]", m.Name, m.Temperature)
		}
		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q: max_tokens must not be negative", m.Name)
		}
	}
	if cfg.Budget.MaxUSD == 0 {
		cfg.Budget.MaxUSD = 100
	}
	if cfg.Budget.MaxUSD < 0 {
		return fmt.Errorf("budget.max_usd must not be negative")
	}
	if cfg.Budget.WarnFraction == 0 {
		cfg.Budget.WarnFraction = 0.9
	}
	if cfg.Budget.WarnFraction < 0 || cfg.Budget.WarnFraction > 1 {
		return fmt.Errorf("budget.warn_fraction must be within [0, 1]")
	}
	if cfg.RateLimit.GlobalPerMinute == 0 {
		cfg.RateLimit.GlobalPerMinute = 60
	}
	if cfg.RateLimit.GlobalPerMinute < 1 {
		return fmt.Errorf("rate_limit.global_per_minute must be at least 1")
	}
	if cfg.RateLimit.PerModelConcurrency == 0 {
		cfg.RateLimit.PerModelConcurrency = 2
	}
	if cfg.RateLimit.PerModelConcurrency < 1 {
		return fmt.Errorf("rate_limit.per_model_concurrency must be at least 1")
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if cfg.HTTP.ConnectTimeoutS == 0 {
		cfg.HTTP.ConnectTimeoutS = 5
	}
	if cfg.HTTP.ReadTimeoutS == 0 {
		cfg.HTTP.ReadTimeoutS = 90
	}
	if cfg.HTTP.ConnectTimeoutS < 0 || cfg.HTTP.ReadTimeoutS < 0 {
		return fmt.Errorf("http timeouts must not be negative")
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "benchmarks"
	}
	if cfg.Prompts.Benchmark == "" {
		cfg.Prompts.Benchmark = "prompts/benchmark_prompt.md"
	}
	if cfg.Prompts.Judge == "" {
		cfg.Prompts.Judge = "prompts/judge_checklist.md"
	}
	return nil
}

// ModelByName returns the configured model with the given name.
func (c *Config) ModelByName(name string) (Model, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// Redacted returns a copy safe for persisting alongside results.
func (c *Config) Redacted() Config {
	out := *c
	out.APIKey = ""
	return out
}
