// Package verify owns the verification state machine: it takes a raw
// intent through interpretation, clarification, explanation review and
// explicit confirmation, and only then produces an execution payload.
// The orchestrator is the single writer of the session aggregate; every
// other package sees it through the read-only consumer surface.
package verify

import (
	"time"

	"github.com/google/uuid"

	"verdict/internal/explain"
	"verdict/internal/intent"
	"verdict/internal/parser"
	"verdict/internal/payload"
)

// Step identifies the current stage of the verification flow.
type Step string

const (
	StepCaptureIntent Step = "capture_intent"
	StepClarify       Step = "clarify"
	StepConfirmIntent Step = "confirm_intent"
	StepExecute       Step = "execute"
)

// Session is the verification session aggregate. All fields are written by
// the orchestrator only; json tags define the persisted snapshot shape.
type Session struct {
	SessionID            string                     `json:"session_id"`
	CurrentStep          Step                       `json:"current_step"`
	OriginalIntent       string                     `json:"original_intent"`
	InterpretedIntent    string                     `json:"interpreted_intent"`
	ClarificationHistory []intent.QA                `json:"clarification_history"`
	IntentConfirmed      bool                       `json:"intent_confirmed"`
	ExecutionPayload     *payload.ExecutionPayload  `json:"execution_payload"`
	VerificationFailed   bool                       `json:"verification_failed"`
	Explanation          *parser.ExplanationReport  `json:"explanation"`
	Risks                []string                   `json:"risks"`
	Summary              string                     `json:"summary"`
	CreatedAt            time.Time                  `json:"created_at"`
}

// assistantState is the persisted snapshot of the safety-gate
// classification and the explanation sub-loop.
type assistantState struct {
	GateState parser.SafetyState     `json:"gate_state,omitempty"`
	Attempts  int                    `json:"attempts"`
	History   []explain.SafetyAnswer `json:"history"`
	Failed    bool                   `json:"failed"`
}

// ConversationEntry is one line of the persisted conversation transcript.
type ConversationEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func newSession() *Session {
	return &Session{
		SessionID:   uuid.NewString(),
		CurrentStep: StepCaptureIntent,
		CreatedAt:   time.Now().UTC(),
	}
}

// ExplanationExport is the JSON shape handed to external consumers that
// display the explanation outside this process.
type ExplanationExport struct {
	SessionID   string                    `json:"session_id"`
	Intent      string                    `json:"intent"`
	Explanation *parser.ExplanationReport `json:"explanation"`
	Risks       []string                  `json:"risks"`
	Timestamp   time.Time                 `json:"timestamp"`
}
