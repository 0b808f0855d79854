package intent

import (
	"context"
	"errors"
	"testing"

	"verdict/internal/gateway"
	"verdict/internal/parser"
)

func TestSafetyGate_ScreenAgainstSimulator(t *testing.T) {
	gate := NewSafetyGate(gateway.NewSimulator())

	decision := gate.Screen(context.Background(), "swap 1 ETH for USDC")
	if decision.State != parser.StateClarificationRequired {
		t.Errorf("swap intent state = %s", decision.State)
	}
	if decision.Question == "" {
		t.Error("clarification decision without a question")
	}

	decision = gate.Screen(context.Background(), "check my balance")
	if decision.State != parser.StateIntentVerified {
		t.Errorf("benign intent state = %s", decision.State)
	}
}

func TestSafetyGate_ClarificationAcknowledged(t *testing.T) {
	gate := NewSafetyGate(gateway.NewSimulator())

	decision := gate.ScreenWithClarification(context.Background(),
		"swap 1 ETH for USDC", "yes, I trust the contract")
	if decision.State != parser.StateIntentVerified {
		t.Errorf("positive answer state = %s", decision.State)
	}

	decision = gate.ScreenWithClarification(context.Background(),
		"swap 1 ETH for USDC", "not sure what that means")
	if decision.State != parser.StateClarificationRequired {
		t.Errorf("negative answer state = %s", decision.State)
	}
}

func TestSafetyGate_DegradesOnGatewayFailure(t *testing.T) {
	client := &scriptedClient{err: errors.New("gateway down")}
	gate := NewSafetyGate(client)

	decision := gate.Screen(context.Background(), "anything")
	if decision.State != parser.StateClarificationRequired {
		t.Errorf("state = %s", decision.State)
	}
	if decision.Question != parser.GenericSafetyQuestion {
		t.Errorf("question = %q", decision.Question)
	}
}

func TestSafetyGate_BlockedResponse(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"STATE: EXECUTION_BLOCKED\n\nExecution blocked due to unresolved safety risk.",
	}}
	gate := NewSafetyGate(client)

	decision := gate.Screen(context.Background(), "approve whatever this contract wants")
	if decision.State != parser.StateExecutionBlocked {
		t.Errorf("state = %s", decision.State)
	}
	if decision.Message == "" {
		t.Error("blocked decision without a message")
	}
}
