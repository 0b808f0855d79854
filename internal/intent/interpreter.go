// Package intent orchestrates intent interpretation and the clarification loop.
// The interpreter asks the gateway for a plain-English reading of the user's
// intent; when detail is missing it produces exactly one question per round,
// and each answer updates the working interpretation instead of replacing it.
package intent

import (
	"context"
	"fmt"
	"strings"

	"verdict/internal/gateway"
	"verdict/internal/logging"
	"verdict/internal/parser"
)

// QA is one recorded clarification exchange.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Interpreter drives interpretation calls through the gateway.
type Interpreter struct {
	client gateway.Client
}

// NewInterpreter creates an interpreter on top of a gateway client.
func NewInterpreter(client gateway.Client) *Interpreter {
	return &Interpreter{client: client}
}

const interpretPromptFmt = `You are an Intent Interpreter for a smart contract verification system.

Your job: Interpret the user's intent and determine if clarification is needed.

INPUT: "%s"

RULES:
- If the intent is clear and complete, provide a plain English interpretation
- If any critical detail is missing (amount, recipient, timing, conditions), ask ONE clarification question
- Do NOT add assumptions - only interpret what is explicitly stated
- Do NOT provide safety warnings or risk analysis

OUTPUT FORMAT (choose one):

If clarification needed:
NEEDS_CLARIFICATION: true
QUESTION: [single clarification question]
CURRENT_INTERPRETATION: [what you understand so far]

If intent is clear:
NEEDS_CLARIFICATION: false
INTERPRETATION: [plain English statement of what will happen]`

const updatePromptFmt = `You are an Intent Interpreter for a smart contract verification system.

ORIGINAL INTENT: "%s"

CLARIFICATIONS PROVIDED:
%s

Your job: Update the interpretation based on the clarifications.

RULES:
- Combine the original intent with the clarification answers
- If still unclear, ask ONE more clarification question
- Do NOT add assumptions beyond what was stated
- Do NOT provide safety warnings

OUTPUT FORMAT (choose one):

If more clarification needed:
NEEDS_CLARIFICATION: true
QUESTION: [single clarification question]
CURRENT_INTERPRETATION: [what you understand so far]

If intent is now clear:
NEEDS_CLARIFICATION: false
INTERPRETATION: [complete plain English statement of what will happen]`

// Interpret issues one gateway call with the interpretation prompt and
// parses the response. A gateway failure is fatal to the operation: the
// caller redirects the user back to intent capture, it does not retry.
func (i *Interpreter) Interpret(ctx context.Context, intent string) (*parser.InterpretationResult, error) {
	logging.Intent("Interpreting intent (%d chars)", len(intent))

	response, err := i.client.CompleteWithSystem(ctx, fmt.Sprintf(interpretPromptFmt, intent), intent)
	if err != nil {
		logging.Get(logging.CategoryIntent).Error("Interpretation failed: %v", err)
		return nil, fmt.Errorf("interpretation failed: %w", err)
	}

	result := parser.ParseInterpretation(response)
	logging.IntentDebug("Interpretation: needsClarification=%v", result.NeedsClarification)
	return result, nil
}

// UpdateWithClarification reinterprets the original intent with the full
// ordered clarification history embedded in the prompt. The prompt instructs
// the model to combine, not discard, prior context.
func (i *Interpreter) UpdateWithClarification(ctx context.Context, originalIntent string, history []QA) (*parser.InterpretationResult, error) {
	logging.Intent("Updating interpretation with %d clarification(s)", len(history))

	var sb strings.Builder
	for idx, qa := range history {
		if idx > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Q: ")
		sb.WriteString(qa.Question)
		sb.WriteString("\nA: ")
		sb.WriteString(qa.Answer)
	}

	system := fmt.Sprintf(updatePromptFmt, originalIntent, sb.String())
	response, err := i.client.CompleteWithSystem(ctx, system, originalIntent)
	if err != nil {
		logging.Get(logging.CategoryIntent).Error("Clarification update failed: %v", err)
		return nil, fmt.Errorf("clarification update failed: %w", err)
	}

	return parser.ParseInterpretation(response), nil
}
