// Package parser turns free-text model output into typed structured results.
// It is the trust boundary between the language model oracle and the state
// machine: every transition decision depends only on values produced here,
// never on raw text inspected elsewhere.
//
// Every function in this package is total. Malformed input degrades to a
// well-defined fallback value; nothing here returns an error or panics.
package parser

import "strings"

// InterpretationResult is the typed outcome of an interpretation call.
// Exactly one of the question-bearing fields or the Interpretation field is
// populated, matching NeedsClarification.
type InterpretationResult struct {
	NeedsClarification    bool
	Question              string
	CurrentInterpretation string
	Interpretation        string
}

// Interpretation marker prefixes. Case-sensitive exact prefixes, scanned
// line by line.
const (
	markerNeedsClarification    = "NEEDS_CLARIFICATION:"
	markerQuestion              = "QUESTION:"
	markerCurrentInterpretation = "CURRENT_INTERPRETATION:"
	markerInterpretation        = "INTERPRETATION:"
)

// ParseInterpretation extracts an InterpretationResult from raw model output.
// If no structured markers are found at all, the entire trimmed text is
// treated as a complete interpretation.
func ParseInterpretation(response string) *InterpretationResult {
	result := &InterpretationResult{}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, markerNeedsClarification):
			result.NeedsClarification = strings.Contains(line, "true")
		case strings.HasPrefix(line, markerQuestion):
			result.Question = strings.TrimSpace(strings.TrimPrefix(line, markerQuestion))
		case strings.HasPrefix(line, markerCurrentInterpretation):
			result.CurrentInterpretation = strings.TrimSpace(strings.TrimPrefix(line, markerCurrentInterpretation))
		case strings.HasPrefix(line, markerInterpretation):
			result.Interpretation = strings.TrimSpace(strings.TrimPrefix(line, markerInterpretation))
		}
	}

	// Graceful degradation: unstructured text is a complete interpretation.
	if !result.NeedsClarification && result.Interpretation == "" {
		result.Interpretation = strings.TrimSpace(response)
	}

	return result
}
