package intent

import (
	"context"
	"fmt"

	"verdict/internal/gateway"
	"verdict/internal/logging"
	"verdict/internal/parser"
)

const gatePrompt = `You are NOT a conversational assistant. You are a Transaction Safety Gate.

Your ONLY job is to classify user input into ONE of these states:

STATE 1: Intent Incomplete
STATE 2: Safety Clarification Required
STATE 3: Ready for Execution
STATE 4: High Risk - Block Execution

GLOBAL RULES:
- NEVER ask open-ended questions
- NEVER ask "when", "how", or "provide more details"
- NEVER rephrase user intent
- ALWAYS respond with a single, fixed-format safety question OR a state decision

STATE 1 - Intent Incomplete (Trigger if asset, action, or platform is missing)
Response format:
"To continue, confirm this one detail: [specific missing item]"

STATE 2 - Safety Clarification Required (Trigger if financial risk exists, contract trust is unclear, or permissions may be requested)
Response format (choose ONE only):
- "Do you recognize and trust the contract requesting this action?"
- "Does this action require token approval or wallet signature?"
- "Do you understand this action cannot be reversed once confirmed?"

STATE 3 - Ready for Execution (Trigger ONLY if intent is clear, platform is known, risk is acknowledged)
Response format:
"Intent verified. You may proceed to execution."

STATE 4 - High Risk - Block Execution (Trigger if third-party claims, unknown source, or social engineering detected)
Response format:
"Execution blocked due to unresolved safety risk."

CRITICAL:
- You may ask ONLY ONE question per response
- You may NOT ask follow-up questions unless the previous one is answered
- You may NOT invent questions
- If no valid safety question applies, BLOCK execution

Return the single required state response.`

// SafetyGate classifies an intent into the four-state safety taxonomy
// before interpretation starts. It never returns an error: a gateway
// failure degrades to a clarification decision with the generic question,
// so the caller always has a next step.
type SafetyGate struct {
	client gateway.Client
}

func NewSafetyGate(client gateway.Client) *SafetyGate {
	return &SafetyGate{client: client}
}

// Screen classifies a raw intent.
func (g *SafetyGate) Screen(ctx context.Context, userIntent string) *parser.SafetyDecision {
	user := fmt.Sprintf("User input: %q\n\nAnalyze for safety:", userIntent)
	return g.classify(ctx, user)
}

// ScreenWithClarification re-checks after the user answered a safety
// question. The gate sees the original intent and the answer together.
func (g *SafetyGate) ScreenWithClarification(ctx context.Context, userIntent, answer string) *parser.SafetyDecision {
	user := fmt.Sprintf("Original intent: %q\nUser clarification: %q\n\nAnalyze for safety:", userIntent, answer)
	return g.classify(ctx, user)
}

func (g *SafetyGate) classify(ctx context.Context, userPrompt string) *parser.SafetyDecision {
	response, err := g.client.CompleteWithSystem(ctx, gatePrompt, userPrompt)
	if err != nil {
		logging.Get(logging.CategoryIntent).Warn("Safety gate unavailable, asking generic question: %v", err)
		return &parser.SafetyDecision{
			State:    parser.StateClarificationRequired,
			Question: parser.GenericSafetyQuestion,
		}
	}

	decision := parser.ParseSafetyState(response)
	logging.IntentDebug("Safety gate decision: %s", decision.State)
	return decision
}
