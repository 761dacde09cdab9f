package engine

import (
	"context"

	"github.com/MightyPrytanis/roundtable/internal/pubsub"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// StatusUpdate is published on every workflow transition: creation, each
// completed step, and terminal status changes.
type StatusUpdate struct {
	ID          workflow.WorkflowID
	Status      workflow.Status
	CurrentStep int
	TotalSteps  int
	Agent       workflow.AgentID
	Error       string
}

// StatusEvent is a pubsub event carrying a StatusUpdate.
type StatusEvent = pubsub.Event[StatusUpdate]

// Subscribe returns a channel of status events. The subscription is cleaned
// up when ctx is cancelled. Slow consumers drop events rather than stall
// the pipeline.
func (e *Executor) Subscribe(ctx context.Context) <-chan StatusEvent {
	return e.broker.Subscribe(ctx)
}

func (e *Executor) publish(eventType pubsub.EventType, state *workflow.State, errText string) {
	agent := workflow.AgentID("")
	if state.CurrentStep < len(state.Steps) {
		agent = state.Steps[state.CurrentStep].Agent
	}
	e.broker.Publish(eventType, StatusUpdate{
		ID:          state.ID,
		Status:      state.Status,
		CurrentStep: state.CurrentStep,
		TotalSteps:  len(state.Steps),
		Agent:       agent,
		Error:       errText,
	})
}
