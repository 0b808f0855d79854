package parser

import "strings"

// SafetyState is the canonical classification of a safety-gate response.
type SafetyState string

const (
	StateIntentIncomplete      SafetyState = "INTENT_INCOMPLETE"
	StateClarificationRequired SafetyState = "CLARIFICATION_REQUIRED"
	StateIntentVerified        SafetyState = "INTENT_VERIFIED"
	StateExecutionBlocked      SafetyState = "EXECUTION_BLOCKED"
)

// GenericSafetyQuestion is the fallback when no actionable question can be
// extracted from a safety-gate response. The caller must always have a next
// step, so this is the floor the parser never goes below.
const GenericSafetyQuestion = "Do you recognize and trust the contract requesting this action?"

// blockedMessage is the fixed user-facing text for a blocked execution.
const blockedMessage = "Execution blocked due to unresolved safety risk."

// SafetyDecision is the typed outcome of a safety-gate classification.
// Question is set for the two clarifying states; Message for the blocked
// and verified states.
type SafetyDecision struct {
	State    SafetyState
	Question string
	Message  string
}

// ParseSafetyState classifies a safety-gate response into one of the four
// canonical states. Marker lines ("STATE:" or "STATE 1".."STATE 4") win;
// without one, known canonical phrases are matched lexically; if nothing
// matches, the decision defaults to CLARIFICATION_REQUIRED with the generic
// safety question.
func ParseSafetyState(response string) *SafetyDecision {
	lines := strings.Split(response, "\n")

	stateLineIdx := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "STATE:") ||
			strings.HasPrefix(trimmed, "STATE 1") || strings.HasPrefix(trimmed, "STATE 2") ||
			strings.HasPrefix(trimmed, "STATE 3") || strings.HasPrefix(trimmed, "STATE 4") {
			stateLineIdx = i
			break
		}
	}

	if stateLineIdx < 0 {
		return classifyByPhrase(response)
	}

	stateLine := strings.TrimSpace(lines[stateLineIdx])
	state := normalizeState(stateLine)
	message := strings.TrimSpace(strings.Join(lines[stateLineIdx+1:], "\n"))

	switch state {
	case StateIntentIncomplete:
		if message == "" {
			message = "To continue, confirm this one detail: platform or app."
		}
		return &SafetyDecision{State: StateIntentIncomplete, Question: message}
	case StateClarificationRequired:
		if message == "" {
			message = GenericSafetyQuestion
		}
		return &SafetyDecision{State: StateClarificationRequired, Question: message}
	case StateExecutionBlocked:
		if message == "" {
			message = blockedMessage
		}
		return &SafetyDecision{State: StateExecutionBlocked, Message: message}
	case StateIntentVerified:
		return &SafetyDecision{State: StateIntentVerified, Message: message}
	default:
		// Unknown state label: degrade to a clarification with a fixed question.
		return &SafetyDecision{
			State:    StateClarificationRequired,
			Question: "Do you understand the risks of this transaction?",
		}
	}
}

// normalizeState maps a marker line to a canonical state.
func normalizeState(stateLine string) SafetyState {
	if strings.HasPrefix(stateLine, "STATE:") {
		label := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(stateLine, "STATE:")))
		switch {
		case strings.Contains(label, "intent incomplete"):
			return StateIntentIncomplete
		case strings.Contains(label, "safety clarification required"), strings.Contains(label, "clarification"):
			return StateClarificationRequired
		case strings.Contains(label, "ready for execution"), strings.Contains(label, "verified"):
			return StateIntentVerified
		case strings.Contains(label, "high risk"), strings.Contains(label, "block"):
			return StateExecutionBlocked
		}
		return SafetyState(strings.ToUpper(label))
	}

	switch {
	case strings.HasPrefix(stateLine, "STATE 1"):
		return StateIntentIncomplete
	case strings.HasPrefix(stateLine, "STATE 2"):
		return StateClarificationRequired
	case strings.HasPrefix(stateLine, "STATE 3"):
		return StateIntentVerified
	case strings.HasPrefix(stateLine, "STATE 4"):
		return StateExecutionBlocked
	}
	return StateClarificationRequired
}

// classifyByPhrase is the lexical fallback when no marker line exists.
func classifyByPhrase(response string) *SafetyDecision {
	lower := strings.ToLower(response)

	switch {
	case strings.Contains(lower, "intent verified"):
		return &SafetyDecision{State: StateIntentVerified, Message: strings.TrimSpace(response)}

	case strings.Contains(lower, "execution blocked"):
		return &SafetyDecision{State: StateExecutionBlocked, Message: blockedMessage}

	case strings.Contains(lower, "to continue, confirm"):
		return &SafetyDecision{State: StateIntentIncomplete, Question: strings.TrimSpace(response)}

	case strings.Contains(lower, "do you recognize and trust the contract"),
		strings.Contains(lower, "token approval or wallet signature"),
		strings.Contains(lower, "cannot be reversed"):
		return &SafetyDecision{State: StateClarificationRequired, Question: strings.TrimSpace(response)}
	}

	return &SafetyDecision{State: StateClarificationRequired, Question: GenericSafetyQuestion}
}
