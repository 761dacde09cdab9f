package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// InvokeFunc adapts a function to the Invoker interface.
type InvokeFunc func(ctx context.Context, id workflow.AgentID, prompt string) (Result, error)

func (f InvokeFunc) Invoke(ctx context.Context, id workflow.AgentID, prompt string) (Result, error) {
	return f(ctx, id, prompt)
}

// Call records a single invocation seen by a ScriptedInvoker.
type Call struct {
	Agent  workflow.AgentID
	Prompt string
}

// ScriptedInvoker replays canned responses per agent and records every call.
// Tests use it to drive workflows deterministically without a provider.
type ScriptedInvoker struct {
	mu        sync.Mutex
	responses map[workflow.AgentID][]string
	errs      map[workflow.AgentID]error
	calls     []Call
}

// NewScriptedInvoker creates an empty scripted invoker.
func NewScriptedInvoker() *ScriptedInvoker {
	return &ScriptedInvoker{
		responses: make(map[workflow.AgentID][]string),
		errs:      make(map[workflow.AgentID]error),
	}
}

// Respond queues responses for an agent, consumed in order. When the queue
// runs dry the last response repeats.
func (s *ScriptedInvoker) Respond(id workflow.AgentID, responses ...string) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[id] = append(s.responses[id], responses...)
	return s
}

// Fail makes every invocation of the agent return err.
func (s *ScriptedInvoker) Fail(id workflow.AgentID, err error) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[id] = err
	return s
}

// Invoke returns the next scripted response for the agent.
func (s *ScriptedInvoker) Invoke(ctx context.Context, id workflow.AgentID, prompt string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Agent: id, Prompt: prompt})

	if err, ok := s.errs[id]; ok {
		return Result{}, err
	}

	queue, ok := s.responses[id]
	if !ok || len(queue) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	content := queue[0]
	if len(queue) > 1 {
		s.responses[id] = queue[1:]
	}
	return Result{Content: content}, nil
}

// Calls returns a copy of every recorded invocation.
func (s *ScriptedInvoker) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

var _ Invoker = (*ScriptedInvoker)(nil)
var _ Invoker = (InvokeFunc)(nil)
