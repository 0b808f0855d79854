// Package explain produces the four-section plain-English consequence
// report for a confirmed intent, and runs the bounded safety sub-loop when
// the report comes back incomplete. Unlike the intent clarification loop,
// the sub-loop asks fixed, non-generated questions and is hard-capped; on
// exhaustion the session's verification fails permanently.
package explain

import (
	"context"
	"fmt"
	"strings"

	"verdict/internal/gateway"
	"verdict/internal/logging"
	"verdict/internal/parser"
)

// DefaultMaxRounds is the safety sub-loop bound.
const DefaultMaxRounds = 2

const explainPrompt = `You are a deterministic Intent Explanation Engine for a Web3 safety application.

Your ONLY job: Explain what the user is about to approve in plain English.

ABSOLUTE RULES (DO NOT BREAK):
- Do NOT repeat the user's words
- Do NOT summarize the input
- Do NOT reassure the user
- Do NOT mention developers, audits, Solidity, gas, or blockchain internals
- Do NOT say "this seems safe"
- Use simple language for a non-technical person
- If details are missing, you MUST say so

OUTPUT MUST MATCH THIS FORMAT EXACTLY.
If you cannot follow the format, output:
"Unable to generate a safe explanation."

FORMAT:

PLAIN ENGLISH EXPLANATION

What will happen:
-

Who is affected:
-

What could go wrong:
-

What cannot be undone:
- `

const combinePromptFmt = `You are an AI confirmation assistant for blockchain actions.
Your role is to protect users from executing smart contracts they do not fully understand.

Original intent:
"%s"

User clarification:
"%s"

Combine both into a single, clear intent statement.

Rules:
- Do not add new conditions
- Do not remove user intent
- Keep it concise and explicit`

// safetyQuestions are the fixed safety-gate questions, selected by attempt
// index and never generated by the model.
var safetyQuestions = [...]string{
	"Do you recognize and trust the contract requesting this action?",
	"Does this action require token approval or wallet signature?",
	"Do you understand this action cannot be reversed once confirmed?",
}

// Engine produces explanation reports through the gateway.
type Engine struct {
	client    gateway.Client
	maxRounds int
}

// NewEngine creates an explanation engine with the default sub-loop bound.
func NewEngine(client gateway.Client) *Engine {
	return &Engine{client: client, maxRounds: DefaultMaxRounds}
}

// NewEngineWithRounds creates an engine with a custom sub-loop bound.
func NewEngineWithRounds(client gateway.Client, maxRounds int) *Engine {
	if maxRounds < 1 {
		maxRounds = DefaultMaxRounds
	}
	return &Engine{client: client, maxRounds: maxRounds}
}

// Explain issues one gateway call and parses the four-section report.
// The report may be incomplete; completeness is the caller's gate.
func (e *Engine) Explain(ctx context.Context, intent string) (*parser.ExplanationReport, error) {
	timer := logging.StartTimer(logging.CategoryExplain, "Explain")
	defer timer.Stop()

	response, err := e.client.CompleteWithSystem(ctx, explainPrompt, intent)
	if err != nil {
		logging.Get(logging.CategoryExplain).Error("Explanation failed: %v", err)
		return nil, fmt.Errorf("explanation failed: %w", err)
	}

	report := parser.ParseExplanation(response)
	if report.Incomplete {
		first, _ := report.FirstMissing()
		logging.Explain("Report incomplete, first missing section: %s", first.Key())
	}
	return report, nil
}

// Combine merges the original intent with a safety answer into a single
// candidate intent. On gateway failure it degrades to plain concatenation
// rather than blocking the flow.
func (e *Engine) Combine(ctx context.Context, originalIntent, answer string) string {
	system := fmt.Sprintf(combinePromptFmt, originalIntent, answer)
	combined, err := e.client.CompleteWithSystem(ctx, system, "Combine into one clear statement:")
	if err != nil {
		logging.Get(logging.CategoryExplain).Warn("Combine failed, concatenating: %v", err)
		return strings.TrimSpace(originalIntent + " " + answer)
	}
	return strings.TrimSpace(combined)
}

const summarizePromptFmt = `You are an AI confirmation assistant for blockchain actions.

User intent:
"%s"

Explain in simple, plain English what will happen if this intent is executed.

Constraints:
- Maximum 3 short sentences
- Do not add assumptions
- Do not introduce new conditions
- Be clear and protective`

// Summarize produces the short confirmation-screen summary of the final
// intent. On gateway failure it returns the intent itself.
func (e *Engine) Summarize(ctx context.Context, finalIntent string) string {
	system := fmt.Sprintf(summarizePromptFmt, finalIntent)
	summary, err := e.client.CompleteWithSystem(ctx, system, "Explain what will happen:")
	if err != nil {
		logging.Get(logging.CategoryExplain).Warn("Summarize failed, echoing intent: %v", err)
		return finalIntent
	}
	return strings.TrimSpace(summary)
}

// SafetyQuestion returns the fixed question for the given attempt index.
// Indexes past the last question clamp to it; the counter is not reset
// within a session.
func SafetyQuestion(attempt int) string {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(safetyQuestions) {
		attempt = len(safetyQuestions) - 1
	}
	return safetyQuestions[attempt]
}
