// Package testutil provides builders for workflow test fixtures.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// StateBuilder accumulates workflow fixture data and assembles a valid
// State through the real planner and transition methods, so fixtures can
// never violate invariants the production code enforces.
type StateBuilder struct {
	t            *testing.T
	query        string
	participants []workflow.AgentID
	attachments  []workflow.AttachmentRef
	outputs      []string
	failure      string
	status       workflow.Status
}

// NewState creates a builder with a single default participant.
func NewState(t *testing.T) *StateBuilder {
	t.Helper()
	return &StateBuilder{
		t:            t,
		query:        "test query",
		participants: []workflow.AgentID{"agent-0"},
	}
}

// WithQuery sets the original query.
func (b *StateBuilder) WithQuery(query string) *StateBuilder {
	b.query = query
	return b
}

// WithAgents sets the ordered participant list.
func (b *StateBuilder) WithAgents(agents ...workflow.AgentID) *StateBuilder {
	b.participants = agents
	return b
}

// WithAttachment adds an attachment reference.
func (b *StateBuilder) WithAttachment(id, displayName string) *StateBuilder {
	b.attachments = append(b.attachments, workflow.AttachmentRef{ID: id, DisplayName: displayName})
	return b
}

// WithCompletedSteps completes the first len(outputs) steps in order.
func (b *StateBuilder) WithCompletedSteps(outputs ...string) *StateBuilder {
	b.outputs = outputs
	return b
}

// WithFailure fails the step after the completed prefix with the given
// error text and transitions the workflow to failed.
func (b *StateBuilder) WithFailure(errText string) *StateBuilder {
	b.failure = errText
	return b
}

// WithStatus transitions the finished fixture to the given status.
func (b *StateBuilder) WithStatus(status workflow.Status) *StateBuilder {
	b.status = status
	return b
}

// Build assembles the State.
func (b *StateBuilder) Build() *workflow.State {
	b.t.Helper()

	specs, err := workflow.Plan(b.query, b.participants, len(b.attachments) > 0)
	require.NoError(b.t, err)
	state, err := workflow.NewState(workflow.NewWorkflowID(), b.query, specs, b.attachments)
	require.NoError(b.t, err)

	for i, output := range b.outputs {
		require.NoError(b.t, state.CompleteStep(i, output))
	}
	if b.failure != "" {
		require.NoError(b.t, state.FailStep(state.CurrentStep, b.failure))
		require.NoError(b.t, state.TransitionTo(workflow.StatusFailed))
	}
	if b.status != "" && b.status != state.Status {
		require.NoError(b.t, state.TransitionTo(b.status))
	}
	return state
}
