package gateway

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"verdict/internal/logging"
)

// Simulator is a deterministic offline Client.
// It classifies the system prompt by fixed substrings and returns canned
// text keyed off the user prompt, so the full verification state machine
// can run and be tested with no network dependency. Every prompt template
// the core issues is classifiable here, and every response is parseable
// by the parser package.
type Simulator struct{}

// NewSimulator creates the offline simulator.
func NewSimulator() *Simulator {
	return &Simulator{}
}

// Complete sends a prompt and returns the canned completion.
func (s *Simulator) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

var clarificationAnswerRe = regexp.MustCompile(`(?i)User clarification:\s*"([^"]+)"`)

// positiveAnswers are the phrasings the safety gate accepts as an
// acknowledgment when re-checking after a clarification.
var positiveAnswers = []string{
	"yes", "i trust", "i understand", "i accept", "correct",
	"confirmed", "i do", "i am aware", "i know",
}

// CompleteWithSystem classifies the system prompt and returns deterministic text.
func (s *Simulator) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &GatewayError{Message: err.Error()}
	}

	logging.GatewayDebug("Simulator request: system_len=%d user_len=%d", len(systemPrompt), len(userPrompt))

	switch {
	case strings.Contains(systemPrompt, "Transaction Safety Gate"):
		return s.safetyGate(userPrompt), nil
	case strings.Contains(systemPrompt, "Intent Explanation Engine"),
		strings.Contains(systemPrompt, "PLAIN ENGLISH EXPLANATION"):
		return s.explanation(userPrompt), nil
	case strings.Contains(systemPrompt, "structured execution condition"):
		return s.executionJSON(), nil
	case strings.Contains(systemPrompt, "potential risks"):
		return "- Once executed, this transaction cannot be reversed\n- If the recipient address is incorrect, your funds may be lost", nil
	case strings.Contains(systemPrompt, "Combine both into a single"):
		return s.combine(systemPrompt), nil
	case strings.Contains(systemPrompt, "Intent Interpreter"):
		return s.interpretation(systemPrompt, userPrompt), nil
	default:
		return "NEEDS_CLARIFICATION: false\nINTERPRETATION: The requested action will be executed as specified.", nil
	}
}

// safetyGate emulates the state-classifying safety assistant.
func (s *Simulator) safetyGate(userPrompt string) string {
	promptLower := strings.ToLower(userPrompt)
	isClarification := strings.Contains(promptLower, "original intent") &&
		strings.Contains(promptLower, "user clarification")

	if isClarification {
		var answer string
		if m := clarificationAnswerRe.FindStringSubmatch(userPrompt); m != nil {
			answer = strings.ToLower(m[1])
		}
		for _, resp := range positiveAnswers {
			if strings.Contains(answer, resp) {
				return "STATE: INTENT_VERIFIED\n\nIntent verified. You may proceed to execution."
			}
		}
		return "STATE: CLARIFICATION_REQUIRED\n\nDo you recognize and trust the contract requesting this action?"
	}

	if strings.Contains(promptLower, "swap") || strings.Contains(promptLower, "transfer") || strings.Contains(promptLower, "send") {
		return "STATE: CLARIFICATION_REQUIRED\n\nDo you recognize and trust the contract requesting this action?"
	}

	return "STATE: INTENT_VERIFIED\n\nIntent verified. You may proceed to execution."
}

// explanation returns a four-section plain English report keyed off intent keywords.
func (s *Simulator) explanation(userPrompt string) string {
	intentLower := strings.ToLower(userPrompt)

	var whatWillHappen, whoIsAffected, whatCouldGoWrong, whatCannotBeUndone string

	switch {
	case strings.Contains(intentLower, "swap"):
		whatWillHappen = "- Your tokens will be exchanged for a different token\n- The swap will execute at the current market rate"
		whoIsAffected = "- You will receive the new tokens\n- The liquidity pool will process the exchange"
		whatCouldGoWrong = "- Price slippage may result in fewer tokens than expected\n- The swap could fail if liquidity is insufficient"
		whatCannotBeUndone = "- Once swapped, you cannot reverse the exchange\n- Any slippage loss is permanent"
	case strings.Contains(intentLower, "send"), strings.Contains(intentLower, "transfer"):
		whatWillHappen = "- Your funds will be sent to the specified address\n- The transaction will be recorded on the blockchain"
		whoIsAffected = "- You will lose the specified amount\n- The recipient will receive the funds"
		whatCouldGoWrong = "- The recipient address could be incorrect\n- The transaction could fail due to network issues"
		whatCannotBeUndone = "- Once sent, you cannot retrieve the funds\n- If sent to wrong address, funds are lost forever"
	case strings.Contains(intentLower, "approve"), strings.Contains(intentLower, "permission"):
		whatWillHappen = "- You will grant a contract permission to spend your tokens\n- The approval will remain active until revoked"
		whoIsAffected = "- Your wallet will have an active approval\n- The approved contract can move your tokens"
		whatCouldGoWrong = "- A malicious contract could drain your approved tokens\n- Unlimited approvals are especially risky"
		whatCannotBeUndone = "- Approvals persist until manually revoked\n- Any tokens moved by the contract cannot be recovered"
	case strings.Contains(intentLower, "stake"), strings.Contains(intentLower, "deposit"):
		whatWillHappen = "- Your tokens will be locked in a staking contract\n- You may earn rewards over time"
		whoIsAffected = "- Your tokens will be inaccessible during the lock period\n- The staking protocol will hold your funds"
		whatCouldGoWrong = "- The staking contract could have vulnerabilities\n- Rewards may be lower than expected"
		whatCannotBeUndone = "- Unstaking may require a waiting period\n- Early withdrawal may incur penalties"
	case strings.Contains(intentLower, "refund"):
		whatWillHappen = "- A refund will be issued to the original sender\n- The refund amount will be deducted from your balance"
		whoIsAffected = "- You will lose the refunded amount\n- The original sender will receive their funds back"
		whatCouldGoWrong = "- The refund address could be incorrect\n- Partial refunds may cause disputes"
		whatCannotBeUndone = "- Once refunded, you cannot reclaim the funds\n- The transaction is final"
	case strings.Contains(intentLower, "release"), strings.Contains(intentLower, "payment"):
		whatWillHappen = "- Payment will be released to the recipient\n- The funds will leave your control"
		whoIsAffected = "- You will transfer the payment amount\n- The recipient will receive the funds"
		whatCouldGoWrong = "- The recipient may not deliver the expected service\n- Payment disputes cannot be resolved on-chain"
		whatCannotBeUndone = "- Once released, payment cannot be reversed\n- You lose all claim to the funds"
	default:
		whatWillHappen = "- The requested action will be executed\n- Your wallet state will be updated"
		whoIsAffected = "- You as the initiator of this action\n- Any counterparties involved in the transaction"
		whatCouldGoWrong = "- Unexpected contract behavior is possible\n- Network conditions may affect the outcome"
		whatCannotBeUndone = "- Blockchain transactions are permanent\n- No undo function exists for on-chain actions"
	}

	return "PLAIN ENGLISH EXPLANATION\n\n" +
		"What will happen:\n" + whatWillHappen + "\n\n" +
		"Who is affected:\n" + whoIsAffected + "\n\n" +
		"What could go wrong:\n" + whatCouldGoWrong + "\n\n" +
		"What cannot be undone:\n" + whatCannotBeUndone
}

// executionJSON returns a canned structured execution condition.
func (s *Simulator) executionJSON() string {
	out, _ := json.MarshalIndent(map[string]interface{}{
		"trigger_type": "manual",
		"data_source":  "manual",
		"condition":    "user_approval",
		"action":       "release",
		"deadline":     nil,
	}, "", "  ")
	return string(out)
}

// combine emulates the intent-combining step: original intent plus the
// clarification answer, both embedded in the system prompt.
func (s *Simulator) combine(systemPrompt string) string {
	original := extractQuoted(systemPrompt, "Original intent:")
	clarification := extractQuoted(systemPrompt, "User clarification:")
	combined := strings.TrimSpace(original + " " + clarification)
	if combined == "" {
		return "The stated action will be carried out as described."
	}
	return combined
}

// extractQuoted finds the first double-quoted string following the marker line.
func extractQuoted(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	rest := text[idx+len(marker):]
	start := strings.Index(rest, `"`)
	if start < 0 {
		return ""
	}
	rest = rest[start+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// interpretation emulates the intent interpreter, for both the initial
// pass and clarification updates.
func (s *Simulator) interpretation(systemPrompt, userPrompt string) string {
	intentLower := strings.ToLower(userPrompt)

	// Update with clarifications: history is embedded in the system prompt,
	// so the combined interpretation is always complete.
	if strings.Contains(systemPrompt, "CLARIFICATIONS PROVIDED") {
		var interpretation string
		switch {
		case strings.Contains(intentLower, "swap"):
			interpretation = "You want to swap tokens. Based on your clarification, the swap will execute at the specified parameters."
		case strings.Contains(intentLower, "send"), strings.Contains(intentLower, "transfer"):
			interpretation = "You want to send funds to the specified recipient address."
		case strings.Contains(intentLower, "release"), strings.Contains(intentLower, "payment"):
			interpretation = "You want to release payment to the recipient once conditions are met."
		case strings.Contains(intentLower, "refund"):
			interpretation = "You want to issue a refund to the original sender."
		default:
			interpretation = "You want to execute the action: " + userPrompt
		}
		return "NEEDS_CLARIFICATION: false\nINTERPRETATION: " + interpretation
	}

	// Initial interpretation: transfers without concrete assets need detail.
	needsClarification := !strings.Contains(intentLower, "eth") && !strings.Contains(intentLower, "usdc") &&
		(strings.Contains(intentLower, "swap") || strings.Contains(intentLower, "send") || strings.Contains(intentLower, "transfer"))

	if needsClarification {
		current := "You want to transfer funds"
		if strings.Contains(intentLower, "swap") {
			current = "You want to swap tokens"
		}
		return "NEEDS_CLARIFICATION: true\nQUESTION: What amount would you like to use for this transaction?\nCURRENT_INTERPRETATION: " + current
	}

	var interpretation string
	switch {
	case strings.Contains(intentLower, "swap"):
		interpretation = "You want to exchange your tokens at the current market rate."
	case strings.Contains(intentLower, "send"), strings.Contains(intentLower, "transfer"):
		interpretation = "You want to send funds to the specified address."
	case strings.Contains(intentLower, "release"), strings.Contains(intentLower, "payment"):
		interpretation = "You want to release payment once the specified conditions are met."
	case strings.Contains(intentLower, "refund"):
		interpretation = "You want to issue a refund based on the stated conditions."
	case strings.Contains(intentLower, "stake"), strings.Contains(intentLower, "deposit"):
		interpretation = "You want to stake or deposit your tokens into the protocol."
	default:
		interpretation = "You want to execute: " + userPrompt
	}
	return "NEEDS_CLARIFICATION: false\nINTERPRETATION: " + interpretation
}
