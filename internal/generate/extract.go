package generate

import (
	"fmt"
	"regexp"
	"strings"
)

// SummaryParseError reports why the summary block could not be extracted.
type SummaryParseError struct {
	Reason string
}

func (e *SummaryParseError) Error() string { return "summary: " + e.Reason }

var (
	headerPattern = regexp.MustCompile(`(?im)^\s*###\s*ZUSAMMENFASSUNG\s*$`)
	linePattern   = regexp.MustCompile(`^-\s*([\p{L}]+):\s*(.+)$`)
)

// normalizeLabel folds case and German umlaut spellings so both
// "Gewünscht" and "gewuenscht" match.
func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	replacer := strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")
	return replacer.Replace(label)
}

// ExtractSummary pulls the structured summary out of a model reply. The
// expected shape is a "### ZUSAMMENFASSUNG" header followed by
// "- Gewuenscht: ..." and "- Bekommen: ..." lines. Scanning stops at the
// first non-matching line after the block has begun.
func ExtractSummary(text string) (Summary, error) {
	loc := headerPattern.FindStringIndex(text)
	if loc == nil {
		return Summary{}, &SummaryParseError{Reason: "header missing"}
	}

	found := make(map[string]string)
	for _, line := range strings.Split(text[loc[1]:], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			if len(found) > 0 {
				break
			}
			continue
		}
		label := normalizeLabel(m[1])
		value := strings.TrimSpace(m[2])
		if label == "gewuenscht" || label == "bekommen" {
			if value == "" {
				return Summary{}, &SummaryParseError{Reason: fmt.Sprintf("value for %s missing", label)}
			}
			found[label] = value
		}
		if len(found) == 2 {
			break
		}
	}

	var missing []string
	for _, label := range []string{"bekommen", "gewuenscht"} {
		if _, ok := found[label]; !ok {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		return Summary{}, &SummaryParseError{Reason: "labels missing: " + strings.Join(missing, ", ")}
	}
	return Summary{Gewuenscht: found["gewuenscht"], Bekommen: found["bekommen"]}, nil
}
