// Package agent defines the contract for invoking a participant model with
// a fully built prompt, plus an LLM-backed production implementation and a
// scripted one for tests.
package agent

import (
	"context"
	"errors"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// ErrUnknownAgent is returned when an agent id has no configured backend.
var ErrUnknownAgent = errors.New("unknown agent")

// Result is the outcome of a single agent invocation.
type Result struct {
	// Content is the agent's full textual response.
	Content string
}

// Invoker sends a prompt to the named agent and returns its response.
// Implementations own provider mechanics (transport, auth, retries); the
// engine only sees content or an error.
type Invoker interface {
	Invoke(ctx context.Context, id workflow.AgentID, prompt string) (Result, error)
}
