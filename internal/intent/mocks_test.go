package intent

import (
	"context"

	"verdict/internal/gateway"
)

// scriptedClient returns queued responses in order, recording every prompt.
type scriptedClient struct {
	responses []string
	err       error

	systemPrompts []string
	userPrompts   []string
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *scriptedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.systemPrompts = append(c.systemPrompts, systemPrompt)
	c.userPrompts = append(c.userPrompts, userPrompt)
	if c.err != nil {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", &gateway.GatewayError{Message: "script exhausted"}
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}
