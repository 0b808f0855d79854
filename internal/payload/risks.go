package payload

import (
	"context"
	"fmt"
	"strings"

	"verdict/internal/gateway"
	"verdict/internal/logging"
)

// MaxRisks caps the number of risks shown on the confirmation screen.
const MaxRisks = 2

// fallbackRiskOnError is shown when the gateway call itself fails.
const fallbackRiskOnError = "Once executed, this action cannot be reversed. Please verify all details carefully."

// fallbackRiskOnEmpty is shown when the model returns nothing usable.
const fallbackRiskOnEmpty = "Please verify all details are correct before proceeding."

const risksPromptFmt = `You are an AI confirmation assistant for blockchain actions.

Analyze the following intent for potential risks, misunderstandings, or edge cases the user should be aware of before execution.

User intent:
"%s"

List up to 2 risks in plain, non-technical language.

Rules:
- Maximum 2 risks
- Use simple language anyone can understand
- Focus on what could go wrong or what the user needs to know
- Be protective but not alarmist`

// RiskAnalyzer surfaces plain-language risks for a confirmed intent.
// Like the payload generator it never fails hard: risk analysis informs
// the confirmation screen but must not block it.
type RiskAnalyzer struct {
	client gateway.Client
	limit  int
}

func NewRiskAnalyzer(client gateway.Client) *RiskAnalyzer {
	return &RiskAnalyzer{client: client, limit: MaxRisks}
}

// NewRiskAnalyzerWithLimit creates an analyzer with a custom risk cap.
func NewRiskAnalyzerWithLimit(client gateway.Client, limit int) *RiskAnalyzer {
	if limit < 1 {
		limit = MaxRisks
	}
	return &RiskAnalyzer{client: client, limit: limit}
}

// Analyze returns at most the configured number of plain-language risk
// statements, falling back to a fixed warning on failure or an empty
// response.
func (a *RiskAnalyzer) Analyze(ctx context.Context, confirmedIntent string) []string {
	system := fmt.Sprintf(risksPromptFmt, confirmedIntent)
	response, err := a.client.CompleteWithSystem(ctx, system, "What risks should the user know about?")
	if err != nil {
		logging.Get(logging.CategoryPayload).Warn("Risk analysis failed: %v", err)
		return []string{fallbackRiskOnError}
	}

	risks := parseRisks(response, a.limit)
	if len(risks) == 0 {
		return []string{fallbackRiskOnEmpty}
	}
	return risks
}

// parseRisks strips bullet prefixes and truncates to limit.
func parseRisks(response string, limit int) []string {
	var risks []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		risks = append(risks, line)
		if len(risks) == limit {
			break
		}
	}
	return risks
}
