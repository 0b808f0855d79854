// Package payload converts a confirmed intent into the structured execution
// condition handed to the execution layer, and surfaces plain-language risks
// alongside it. Generation is best-effort: malformed model output degrades
// to a safe default instead of blocking a confirmed session.
package payload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"verdict/internal/gateway"
	"verdict/internal/logging"
	"verdict/internal/parser"
)

// ExecutionPayload is the fixed external schema. Field names are part of
// the contract with downstream consumers and must not change.
type ExecutionPayload struct {
	TriggerType string  `json:"trigger_type"`
	DataSource  string  `json:"data_source"`
	Condition   string  `json:"condition"`
	Action      string  `json:"action"`
	Deadline    *string `json:"deadline"`
}

// Allowed enum values.
var (
	validTriggerTypes = map[string]bool{"api": true, "time": true, "manual": true, "event": true}
	validActions      = map[string]bool{"release": true, "refund": true, "notify": true, "lock": true}
)

// DefaultPayload is substituted whenever generation or validation fails.
func DefaultPayload() *ExecutionPayload {
	return &ExecutionPayload{
		TriggerType: "event",
		DataSource:  "platform API",
		Condition:   "user_specified_condition",
		Action:      "release",
		Deadline:    nil,
	}
}

// Validate checks the payload against the schema enums and deadline format.
func (p *ExecutionPayload) Validate() error {
	if !validTriggerTypes[p.TriggerType] {
		return fmt.Errorf("invalid trigger_type %q", p.TriggerType)
	}
	if !validActions[p.Action] {
		return fmt.Errorf("invalid action %q", p.Action)
	}
	if p.DataSource == "" {
		return fmt.Errorf("data_source is empty")
	}
	if p.Condition == "" {
		return fmt.Errorf("condition is empty")
	}
	if p.Deadline != nil {
		if _, err := time.Parse(time.RFC3339, *p.Deadline); err != nil {
			return fmt.Errorf("invalid deadline %q: %w", *p.Deadline, err)
		}
	}
	return nil
}

const generatePromptFmt = `You are an AI confirmation assistant for blockchain actions.

Convert the following confirmed user intent into a structured execution condition.

User intent:
"%s"

Output STRICT JSON with exactly these fields:
- trigger_type (api | time | manual | event)
- data_source (platform name, URL, or "manual")
- condition (short, precise string)
- action (release | refund | notify | lock)
- deadline (ISO 8601 string or null)

Rules:
- Return JSON only
- No explanations
- No extra fields`

// Generator produces execution payloads through the gateway.
type Generator struct {
	client gateway.Client
}

func NewGenerator(client gateway.Client) *Generator {
	return &Generator{client: client}
}

// Generate converts the confirmed intent into an execution payload. Any
// failure, from the gateway to schema validation, yields DefaultPayload.
// Generate never returns an error because a confirmed session must always
// produce a payload.
func (g *Generator) Generate(ctx context.Context, confirmedIntent string) *ExecutionPayload {
	timer := logging.StartTimer(logging.CategoryPayload, "Generate")
	defer timer.Stop()

	system := fmt.Sprintf(generatePromptFmt, confirmedIntent)
	response, err := g.client.CompleteWithSystem(ctx, system, "Generate JSON:")
	if err != nil {
		logging.Get(logging.CategoryPayload).Warn("Generation failed, using default: %v", err)
		return DefaultPayload()
	}

	if p := decodePayload(response); p != nil {
		logging.Payload("Generated payload trigger=%s action=%s", p.TriggerType, p.Action)
		return p
	}
	logging.Get(logging.CategoryPayload).Warn("No valid payload in response, using default")
	return DefaultPayload()
}

// decodePayload strips code fences, scans the text for JSON candidates and
// returns the first one that decodes and validates. Returns nil if none do.
func decodePayload(response string) *ExecutionPayload {
	cleaned := parser.StripCodeFence(response)
	for _, candidate := range parser.JSONCandidates(cleaned) {
		var p ExecutionPayload
		if err := json.Unmarshal([]byte(candidate), &p); err != nil {
			continue
		}
		if err := p.Validate(); err != nil {
			logging.Get(logging.CategoryPayload).Debug("Rejected candidate: %v", err)
			continue
		}
		return &p
	}
	return nil
}
