package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MightyPrytanis/roundtable/internal/store"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

func newTestRepo(t *testing.T) *workflowRepository {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.WorkflowRepository()
}

func newSQLiteState(t *testing.T, query string, attachments []workflow.AttachmentRef) *workflow.State {
	t.Helper()
	specs, err := workflow.Plan(query, []workflow.AgentID{"a1", "a2", "a3"}, len(attachments) > 0)
	require.NoError(t, err)
	state, err := workflow.NewState(workflow.NewWorkflowID(), query, specs, attachments)
	require.NoError(t, err)
	return state
}

func TestWorkflowRepository_SaveAndLoad(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	state := newSQLiteState(t, "Summarize the quarterly report",
		[]workflow.AttachmentRef{{ID: "q3.pdf", DisplayName: "Q3 Report", MIMEHint: "application/pdf"}})
	require.NoError(t, repo.Save(ctx, state))

	loaded, err := repo.Load(ctx, state.ID)
	require.NoError(t, err)

	require.Equal(t, state.ID, loaded.ID)
	require.Equal(t, state.OriginalQuery, loaded.OriginalQuery)
	require.Equal(t, state.Participants, loaded.Participants)
	require.Equal(t, workflow.StatusInProgress, loaded.Status)
	require.Equal(t, 0, loaded.CurrentStep)
	require.Len(t, loaded.Steps, 3)
	require.Equal(t, state.Steps[0].Objective, loaded.Steps[0].Objective)
	require.Len(t, loaded.Attachments, 1)
	require.Equal(t, "Q3 Report", loaded.Attachments[0].DisplayName)
	require.NoError(t, loaded.CheckPrefixInvariant())
}

func TestWorkflowRepository_LoadMissing(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Load(context.Background(), workflow.NewWorkflowID())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkflowRepository_SaveUpdatesProgress(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	state := newSQLiteState(t, "q", nil)
	require.NoError(t, repo.Save(ctx, state))

	require.NoError(t, state.CompleteStep(0, "step zero output"))
	require.NoError(t, repo.Save(ctx, state))

	loaded, err := repo.Load(ctx, state.ID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.CurrentStep)
	require.True(t, loaded.Steps[0].Completed)
	require.NotNil(t, loaded.Steps[0].Output)
	require.Equal(t, "step zero output", *loaded.Steps[0].Output)
	require.NotNil(t, loaded.Steps[0].CompletedAt)
	require.Contains(t, loaded.Document, "step zero output")
	require.NoError(t, loaded.CheckPrefixInvariant())
}

func TestWorkflowRepository_SavePersistsFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	state := newSQLiteState(t, "q", nil)
	require.NoError(t, state.FailStep(0, "rate limited"))
	require.NoError(t, state.TransitionTo(workflow.StatusFailed))
	require.NoError(t, repo.Save(ctx, state))

	loaded, err := repo.Load(ctx, state.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusFailed, loaded.Status)
	require.Equal(t, "rate limited", loaded.Steps[0].Error)
	require.False(t, loaded.Steps[0].Completed)
	require.NotNil(t, loaded.CompletedAt)
}

func TestWorkflowRepository_ListFiltersByStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	active := newSQLiteState(t, "active", nil)
	require.NoError(t, repo.Save(ctx, active))

	cancelled := newSQLiteState(t, "cancelled", nil)
	require.NoError(t, cancelled.TransitionTo(workflow.StatusCancelled))
	require.NoError(t, repo.Save(ctx, cancelled))

	all, err := repo.List(ctx, store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	cancelledOnly, err := repo.List(ctx, store.ListFilter{Status: workflow.StatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelledOnly, 1)
	require.Equal(t, "cancelled", cancelledOnly[0].OriginalQuery)

	limited, err := repo.List(ctx, store.ListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestWorkflowRepository_DeleteCascadesSteps(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	state := newSQLiteState(t, "q", nil)
	require.NoError(t, repo.Save(ctx, state))
	require.NoError(t, repo.Delete(ctx, state.ID))

	_, err := repo.Load(ctx, state.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	var count int
	err = repo.db.QueryRow(
		"SELECT COUNT(*) FROM step_records WHERE workflow_id = ?", state.ID.String(),
	).Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count, "step records should cascade on delete")

	require.ErrorIs(t, repo.Delete(ctx, state.ID), store.ErrNotFound)
}

func TestWorkflowRepository_SaveIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	state := newSQLiteState(t, "q", nil)
	require.NoError(t, repo.Save(ctx, state))
	require.NoError(t, repo.Save(ctx, state))

	all, err := repo.List(ctx, store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}
