// Package judge drives the scoring round: it formats the checklist prompt
// for one generation, calls the judge model, and parses the structured score
// out of the reply.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	"github.com/hexebench/hexebench/internal/generate"
	"github.com/hexebench/hexebench/internal/router"
)

// Score is the judge's verdict for one generation. Each dimension is clamped
// into its bound; clamping is recorded in Flags.
type Score struct {
	PhonetischeAehnlichkeit int               `json:"phonetische_aehnlichkeit"`
	Anzueglichkeit          int               `json:"anzueglichkeit"`
	Logik                   int               `json:"logik"`
	Kreativitaet            int               `json:"kreativitaet"`
	Gesamt                  int               `json:"gesamt"`
	Begruendung             map[string]string `json:"begruendung"`
	Flags                   []string          `json:"flags,omitempty"`
}

type bound struct {
	key      string
	min, max int
	set      func(*Score, int)
}

var scoreBounds = []bound{
	{"phonetische_aehnlichkeit", 0, 35, func(s *Score, v int) { s.PhonetischeAehnlichkeit = v }},
	{"anzueglichkeit", 0, 25, func(s *Score, v int) { s.Anzueglichkeit = v }},
	{"logik", 0, 20, func(s *Score, v int) { s.Logik = v }},
	{"kreativitaet", 0, 20, func(s *Score, v int) { s.Kreativitaet = v }},
	{"gesamt", 0, 100, func(s *Score, v int) { s.Gesamt = v }},
}

// Placeholders substituted into the checklist template.
const (
	placeholderWish     = "[Was sich der Gast von der Hexe wünscht – wird hier automatisch eingefügt]"
	placeholderGot      = "[Was er stattdessen bekommt – wird hier automatisch eingefügt]"
	placeholderResponse = "[VOLLSTAENDIGE ANTWORT DES GETESTETEN MODELLS: hier die komplette Antwort des LLMs einfügen]"
)

// LoadTemplate reads the judge checklist from disk.
func LoadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading judge template: %w", err)
	}
	return string(data), nil
}

// FormatPrompt fills the checklist template with one generation's fields.
func FormatPrompt(template string, gen *generate.Generation) string {
	prompt := strings.ReplaceAll(template, placeholderWish, gen.Summary.Gewuenscht)
	prompt = strings.ReplaceAll(prompt, placeholderGot, gen.Summary.Bekommen)
	return strings.ReplaceAll(prompt, placeholderResponse, gen.FullResponse)
}

var jsonBlockPattern = regexp.MustCompile("(?is)```(?:json)?\\s*([\\s\\S]+?)```")

// extractJSONBlock returns the fenced JSON block if present, else the whole
// text.
func extractJSONBlock(text string) string {
	if m := jsonBlockPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// ParseScore decodes the judge reply. Out-of-range scores are clamped with a
// flag rather than rejected; a missing begruendung or a non-integer score is
// a hard parse failure.
func ParseScore(text string) (*Score, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extractJSONBlock(text)), &raw); err != nil {
		return nil, fmt.Errorf("decoding judge reply: %w", err)
	}

	score := &Score{}
	for _, b := range scoreBounds {
		msg, ok := raw[b.key]
		if !ok {
			return nil, fmt.Errorf("judge reply missing score %q", b.key)
		}
		var f float64
		if err := json.Unmarshal(msg, &f); err != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("score %q is not an integer", b.key)
		}
		v := int(f)
		switch {
		case v < b.min:
			v = b.min
			score.Flags = append(score.Flags, b.key+"_clamped_min")
		case v > b.max:
			v = b.max
			score.Flags = append(score.Flags, b.key+"_clamped_max")
		}
		b.set(score, v)
	}

	msg, ok := raw["begruendung"]
	if !ok {
		return nil, fmt.Errorf("judge reply missing begruendung")
	}
	if err := json.Unmarshal(msg, &score.Begruendung); err != nil {
		return nil, fmt.Errorf("decoding begruendung: %w", err)
	}
	if msg, ok := raw["flags"]; ok {
		var flags []string
		if err := json.Unmarshal(msg, &flags); err == nil {
			score.Flags = append(flags, score.Flags...)
		}
	}
	return score, nil
}

// Evaluate scores one generation with the judge model at temperature zero.
// A reply that cannot be parsed is returned as an error; the caller decides
// how it enters the result pipeline.
func Evaluate(ctx context.Context, client *router.Client, judgeModel, template string, gen *generate.Generation) (*Score, error) {
	res, err := client.Chat(ctx, router.Request{
		Kind:        router.KindJudge,
		Model:       judgeModel,
		Prompt:      FormatPrompt(template, gen),
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}
	return ParseScore(res.Text)
}
