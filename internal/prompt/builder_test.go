package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MightyPrytanis/roundtable/internal/attachment"
	"github.com/MightyPrytanis/roundtable/internal/testutil"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

type mapStore map[string][]byte

func (m mapStore) Get(_ context.Context, id string) ([]byte, error) {
	data, ok := m[id]
	if !ok {
		return nil, attachment.ErrNotFound
	}
	return data, nil
}

func newTestState(t *testing.T, participants []workflow.AgentID, attachments []workflow.AttachmentRef) *workflow.State {
	t.Helper()
	b := testutil.NewState(t).
		WithQuery("Draft a migration strategy").
		WithAgents(participants...)
	for _, ref := range attachments {
		b = b.WithAttachment(ref.ID, ref.DisplayName)
	}
	return b.Build()
}

func TestBuild_RoleFramingAndQuery(t *testing.T) {
	state := newTestState(t, []workflow.AgentID{"a1", "a2", "a3"}, nil)
	builder := NewBuilder(nil)

	out, err := builder.Build(context.Background(), state, 0)
	require.NoError(t, err)

	require.Contains(t, out, "You are a1, contributing step 1 of 3")
	require.Contains(t, out, state.Steps[0].Objective)
	require.Contains(t, out, "Draft a migration strategy")
	require.NotContains(t, out, "Previous Contributions")
	require.NotContains(t, out, "final step")
}

func TestBuild_SectionOrderIsFixed(t *testing.T) {
	store := mapStore{"doc": []byte("attachment body")}
	state := newTestState(t, []workflow.AgentID{"a1", "a2"},
		[]workflow.AttachmentRef{{ID: "doc", DisplayName: "doc.md"}})
	require.NoError(t, state.CompleteStep(0, "first output"))

	builder := NewBuilder(store)
	out, err := builder.Build(context.Background(), state, 1)
	require.NoError(t, err)

	framing := strings.Index(out, "You are a2")
	query := strings.Index(out, "## Original Request")
	attach := strings.Index(out, "## Attached Documents")
	digest := strings.Index(out, "## Previous Contributions")
	final := strings.Index(out, "This is the final step")

	require.True(t, framing >= 0 && query > framing, "query must follow framing")
	require.True(t, attach > query, "attachments must follow query")
	require.True(t, digest > attach, "digest must follow attachments")
	require.True(t, final > digest, "final instruction comes last")
}

func TestBuild_MissingAttachmentRendersPlaceholder(t *testing.T) {
	state := newTestState(t, []workflow.AgentID{"a1"},
		[]workflow.AttachmentRef{{ID: "gone", DisplayName: "gone.pdf"}})

	builder := NewBuilder(mapStore{})
	out, err := builder.Build(context.Background(), state, 0)
	require.NoError(t, err)

	require.Contains(t, out, "gone.pdf")
	require.Contains(t, out, NotAccessibleMarker)
}

func TestBuild_FirstStepGetsFullContentWithinBudget(t *testing.T) {
	content := strings.Repeat("x", 1000)
	store := mapStore{"doc": []byte(content)}
	state := newTestState(t, []workflow.AgentID{"a1", "a2"},
		[]workflow.AttachmentRef{{ID: "doc", DisplayName: "doc.md"}})

	builder := NewBuilder(store)
	out, err := builder.Build(context.Background(), state, 0)
	require.NoError(t, err)
	require.Contains(t, out, content)
	require.NotContains(t, out, TruncatedMarker)
}

func TestBuild_LaterStepsTruncateAttachments(t *testing.T) {
	content := strings.Repeat("y", 1000)
	store := mapStore{"doc": []byte(content)}
	state := newTestState(t, []workflow.AgentID{"a1", "a2"},
		[]workflow.AttachmentRef{{ID: "doc", DisplayName: "doc.md"}})
	require.NoError(t, state.CompleteStep(0, "out"))

	builder := NewBuilder(store)
	out, err := builder.Build(context.Background(), state, 1)
	require.NoError(t, err)

	require.Contains(t, out, TruncatedMarker)
	require.Contains(t, out, "1000 characters")
	require.NotContains(t, out, content)
	require.Contains(t, out, strings.Repeat("y", DefaultPreviewLimit))
}

func TestBuild_FirstStepOverBudgetFallsBackToPreview(t *testing.T) {
	content := strings.Repeat("z", 600)
	store := mapStore{"doc": []byte(content)}
	state := newTestState(t, []workflow.AgentID{"a1"},
		[]workflow.AttachmentRef{{ID: "doc", DisplayName: "doc.md"}})

	builder := NewBuilder(store, WithFirstStepBudget(100), WithPreviewLimit(50))
	out, err := builder.Build(context.Background(), state, 0)
	require.NoError(t, err)
	require.Contains(t, out, TruncatedMarker)
	require.Contains(t, out, "50 of 600 characters")
}

func TestBuild_DigestListsCompletedStepsInOrder(t *testing.T) {
	state := newTestState(t, []workflow.AgentID{"a1", "a2", "a3"}, nil)
	require.NoError(t, state.CompleteStep(0, "analysis output"))
	require.NoError(t, state.CompleteStep(1, "development output"))

	builder := NewBuilder(nil)
	out, err := builder.Build(context.Background(), state, 2)
	require.NoError(t, err)

	require.Contains(t, out, "Step 1 (a1): analysis output")
	require.Contains(t, out, "Step 2 (a2): development output")
	require.Less(t, strings.Index(out, "Step 1 (a1)"), strings.Index(out, "Step 2 (a2)"))
}

func TestBuild_DigestBudgetSplitAcrossSteps(t *testing.T) {
	state := newTestState(t, []workflow.AgentID{"a1", "a2", "a3"}, nil)
	require.NoError(t, state.CompleteStep(0, strings.Repeat("a", 5000)))
	require.NoError(t, state.CompleteStep(1, strings.Repeat("b", 5000)))

	builder := NewBuilder(nil, WithDigestBudget(1000))
	out, err := builder.Build(context.Background(), state, 2)
	require.NoError(t, err)

	// 1000 char budget over 2 completed steps leaves 500 per step
	require.Contains(t, out, strings.Repeat("a", 500))
	require.NotContains(t, out, strings.Repeat("a", 501))
	require.Contains(t, out, strings.Repeat("b", 500))
	require.Contains(t, out, TruncatedMarker)
}

func TestBuild_FinalStepDemandsCompleteDeliverable(t *testing.T) {
	state := newTestState(t, []workflow.AgentID{"a1", "a2"}, nil)
	require.NoError(t, state.CompleteStep(0, "out"))

	builder := NewBuilder(nil)
	out, err := builder.Build(context.Background(), state, 1)
	require.NoError(t, err)
	require.Contains(t, out, "complete deliverable")
}

func TestBuild_InvalidStepIndex(t *testing.T) {
	state := newTestState(t, []workflow.AgentID{"a1"}, nil)
	builder := NewBuilder(nil)

	_, err := builder.Build(context.Background(), state, 1)
	require.Error(t, err)
	_, err = builder.Build(context.Background(), state, -1)
	require.Error(t, err)
}
