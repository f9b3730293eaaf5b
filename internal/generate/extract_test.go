package generate_test

import (
	"strings"
	"testing"

	"github.com/hexebench/hexebench/internal/generate"
)

func TestExtractSummary(t *testing.T) {
	text := `Hier ist der Witz...

### ZUSAMMENFASSUNG
- Gewuenscht: einen Kasten Bier
- Bekommen: einen kastrierten Stier
`
	s, err := generate.ExtractSummary(text)
	if err != nil {
		t.Fatalf("ExtractSummary: %v", err)
	}
	if s.Gewuenscht != "einen Kasten Bier" || s.Bekommen != "einen kastrierten Stier" {
		t.Errorf("summary = %+v", s)
	}
}

func TestExtractSummaryUmlautLabels(t *testing.T) {
	text := "### Zusammenfassung\n- Gewünscht: ein Schiff\n- Bekommen: ein Riff\n"
	s, err := generate.ExtractSummary(text)
	if err != nil {
		t.Fatalf("ExtractSummary: %v", err)
	}
	if s.Gewuenscht != "ein Schiff" {
		t.Errorf("gewuenscht = %q", s.Gewuenscht)
	}
}

func TestExtractSummaryStopsAtBlockEnd(t *testing.T) {
	text := `### ZUSAMMENFASSUNG
- Gewuenscht: a
- Bekommen: b
Danach kommt noch Text.
- Gewuenscht: should not overwrite
`
	s, err := generate.ExtractSummary(text)
	if err != nil {
		t.Fatal(err)
	}
	if s.Gewuenscht != "a" || s.Bekommen != "b" {
		t.Errorf("summary = %+v", s)
	}
}

func TestExtractSummaryHeaderMissing(t *testing.T) {
	_, err := generate.ExtractSummary("kein Block hier")
	if err == nil || !strings.Contains(err.Error(), "header missing") {
		t.Errorf("err = %v", err)
	}
}

func TestExtractSummaryLabelMissing(t *testing.T) {
	_, err := generate.ExtractSummary("### ZUSAMMENFASSUNG\n- Gewuenscht: nur eins\n")
	if err == nil || !strings.Contains(err.Error(), "bekommen") {
		t.Errorf("err = %v", err)
	}
}
