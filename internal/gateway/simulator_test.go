package gateway

import (
	"context"
	"strings"
	"testing"
)

func TestSimulator_InterpreterClearIntent(t *testing.T) {
	s := NewSimulator()
	resp, err := s.CompleteWithSystem(context.Background(),
		"You are an Intent Interpreter for a smart contract verification system.",
		"Swap 1 ETH to USDC on Uniswap at market price.")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if !strings.Contains(resp, "NEEDS_CLARIFICATION: false") {
		t.Errorf("expected clear intent, got: %s", resp)
	}
	if !strings.Contains(resp, "market rate") {
		t.Errorf("expected market rate interpretation, got: %s", resp)
	}
}

func TestSimulator_InterpreterAmbiguousIntent(t *testing.T) {
	s := NewSimulator()
	resp, err := s.CompleteWithSystem(context.Background(),
		"You are an Intent Interpreter for a smart contract verification system.",
		"send some tokens")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if !strings.Contains(resp, "NEEDS_CLARIFICATION: true") {
		t.Errorf("expected clarification, got: %s", resp)
	}
	if !strings.Contains(resp, "QUESTION: What amount") {
		t.Errorf("expected amount question, got: %s", resp)
	}
}

func TestSimulator_InterpreterWithClarifications(t *testing.T) {
	s := NewSimulator()
	system := "You are an Intent Interpreter.\n\nORIGINAL INTENT: \"send some tokens\"\n\nCLARIFICATIONS PROVIDED:\nQ: What amount?\nA: 2 ETH"
	resp, err := s.CompleteWithSystem(context.Background(), system, "send some tokens")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if !strings.Contains(resp, "NEEDS_CLARIFICATION: false") {
		t.Errorf("expected resolved interpretation after clarification, got: %s", resp)
	}
}

func TestSimulator_ExplanationHasAllSections(t *testing.T) {
	s := NewSimulator()
	for _, intent := range []string{
		"Swap 1 ETH to USDC",
		"send 5 USDC to alice",
		"approve the staking contract",
		"stake 10 tokens",
		"refund the customer",
		"release payment to the freelancer",
		"do the thing",
	} {
		resp, err := s.CompleteWithSystem(context.Background(),
			"You are a deterministic Intent Explanation Engine for a Web3 safety application.", intent)
		if err != nil {
			t.Fatalf("CompleteWithSystem(%q) failed: %v", intent, err)
		}
		for _, header := range []string{"What will happen:", "Who is affected:", "What could go wrong:", "What cannot be undone:"} {
			if !strings.Contains(resp, header) {
				t.Errorf("intent %q: missing section %q", intent, header)
			}
		}
	}
}

func TestSimulator_SafetyGate(t *testing.T) {
	s := NewSimulator()
	system := "You are NOT a conversational assistant. You are a Transaction Safety Gate."

	resp, err := s.CompleteWithSystem(context.Background(), system, "swap tokens now")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if !strings.Contains(resp, "STATE: CLARIFICATION_REQUIRED") {
		t.Errorf("expected clarification for swap, got: %s", resp)
	}

	resp, err = s.CompleteWithSystem(context.Background(), system,
		`Original intent: "swap tokens"
User clarification: "yes, I trust the contract"`)
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if !strings.Contains(resp, "STATE: INTENT_VERIFIED") {
		t.Errorf("expected verified after positive answer, got: %s", resp)
	}

	resp, err = s.CompleteWithSystem(context.Background(), system,
		`Original intent: "swap tokens"
User clarification: "no idea what that means"`)
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if !strings.Contains(resp, "STATE: CLARIFICATION_REQUIRED") {
		t.Errorf("expected clarification after negative answer, got: %s", resp)
	}
}

func TestSimulator_ExecutionJSON(t *testing.T) {
	s := NewSimulator()
	resp, err := s.CompleteWithSystem(context.Background(),
		"Convert the following confirmed user intent into a structured execution condition.", "Generate JSON:")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	for _, field := range []string{`"trigger_type"`, `"data_source"`, `"condition"`, `"action"`, `"deadline"`} {
		if !strings.Contains(resp, field) {
			t.Errorf("execution JSON missing field %s: %s", field, resp)
		}
	}
}

func TestSimulator_Combine(t *testing.T) {
	s := NewSimulator()
	system := `Original intent:
"send some tokens"

User clarification:
"2 ETH to alice"

Combine both into a single, clear intent statement.`
	resp, err := s.CompleteWithSystem(context.Background(), system, "Combine into one clear statement:")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if !strings.Contains(resp, "send some tokens") || !strings.Contains(resp, "2 ETH to alice") {
		t.Errorf("expected combined statement, got: %s", resp)
	}
}

func TestSimulator_CancelledContext(t *testing.T) {
	s := NewSimulator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Complete(ctx, "anything")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
