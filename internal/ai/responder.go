// Package ai is the seam to the response-generation collaborator. The hub
// only needs something that turns a chat turn into a follow-up turn.
package ai

import (
	"context"
	"fmt"
	"time"
)

// Responder produces the assistant follow-up for a user chat turn.
type Responder interface {
	Reply(ctx context.Context, sessionID, prompt string) (string, error)
}

// SimulatedResponder stands in for the real AI backend: it answers with a
// canned acknowledgement after a short think delay.
type SimulatedResponder struct {
	delay time.Duration
}

func NewSimulated(delay time.Duration) *SimulatedResponder {
	return &SimulatedResponder{delay: delay}
}

func (s *SimulatedResponder) Reply(ctx context.Context, sessionID, prompt string) (string, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	preview := prompt
	if len(preview) > 120 {
		preview = preview[:120] + "…"
	}
	return fmt.Sprintf("I received your message: %q. The AI backend is not connected in this deployment.", preview), nil
}
