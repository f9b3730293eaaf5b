// Package generate drives the joke-generation round and extracts the
// structured summary block from the model's free-text reply.
package generate

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hexebench/hexebench/internal/config"
	"github.com/hexebench/hexebench/internal/router"
)

// Summary is the two-line structured result a candidate model is asked to
// append to its joke.
type Summary struct {
	Gewuenscht string `json:"gewuenscht"`
	Bekommen   string `json:"bekommen"`
}

// Generation is one candidate model's persisted output for a single run.
type Generation struct {
	Model            string    `json:"model"`
	Run              int       `json:"run"`
	Summary          Summary   `json:"summary"`
	FullResponse     string    `json:"full_response"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	Timestamp        time.Time `json:"timestamp"`
}

// LoadPrompt reads the benchmark prompt from disk.
func LoadPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading benchmark prompt: %w", err)
	}
	return string(data), nil
}

const missingEntry = "(kein Eintrag)"

// fallbackSummary stands in when the summary block could not be extracted.
// A malformed summary does not fail the generation; the full response is
// still judged and persisted.
func fallbackSummary(reason string) Summary {
	log.Printf("warning: summary fallback: %s", reason)
	return Summary{Gewuenscht: missingEntry, Bekommen: missingEntry}
}

// Joke runs one generation call for the given model and run index.
func Joke(ctx context.Context, client *router.Client, model config.Model, prompt string, run int) (*Generation, error) {
	res, err := client.Chat(ctx, router.Request{
		Kind:        router.KindGenerate,
		Model:       model.Name,
		Prompt:      prompt,
		Temperature: model.Temperature,
		MaxTokens:   model.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	summary, err := ExtractSummary(res.Text)
	if err != nil {
		summary = fallbackSummary(err.Error())
	}

	return &Generation{
		Model:            model.Name,
		Run:              run,
		Summary:          summary,
		FullResponse:     res.Text,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		CostUSD:          res.CostUSD,
		Timestamp:        time.Now().UTC(),
	}, nil
}
