package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MightyPrytanis/roundtable/internal/agent"
	"github.com/MightyPrytanis/roundtable/internal/prompt"
	"github.com/MightyPrytanis/roundtable/internal/pubsub"
	"github.com/MightyPrytanis/roundtable/internal/store"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

func newTestExecutor(invoker agent.Invoker, opts ...Option) (*Executor, *store.MemoryStore) {
	memStore := store.NewMemoryStore()
	exec := New(memStore, invoker, prompt.NewBuilder(nil), opts...)
	return exec, memStore
}

func TestStart_RunsAllStepsToAwaitingReview(t *testing.T) {
	invoker := agent.NewScriptedInvoker().
		Respond("a1", "analysis").
		Respond("a2", "refinement").
		Respond("a3", "synthesis")
	exec, _ := newTestExecutor(invoker)

	state, err := exec.Start(context.Background(), StartRequest{
		Query:        "Develop a marketing plan",
		Participants: []workflow.AgentID{"a1", "a2", "a3"},
	})
	require.NoError(t, err)

	require.Equal(t, workflow.StatusAwaitingReview, state.Status)
	require.Equal(t, 3, state.CurrentStep)
	require.NoError(t, state.CheckPrefixInvariant())
	require.NotNil(t, state.CompletedAt)
	for _, step := range state.Steps {
		require.True(t, step.Completed)
		require.NotNil(t, step.Output)
	}

	// Each step's prompt carries the prior steps' outputs
	calls := invoker.Calls()
	require.Len(t, calls, 3)
	require.NotContains(t, calls[0].Prompt, "analysis")
	require.Contains(t, calls[1].Prompt, "analysis")
	require.Contains(t, calls[2].Prompt, "analysis")
	require.Contains(t, calls[2].Prompt, "refinement")

	// Document sections appear in step order
	require.Less(t, strings.Index(state.Document, "analysis"), strings.Index(state.Document, "refinement"))
	require.Less(t, strings.Index(state.Document, "refinement"), strings.Index(state.Document, "synthesis"))
}

func TestStart_PlanningErrorPersistsNothing(t *testing.T) {
	exec, memStore := newTestExecutor(agent.NewScriptedInvoker())

	_, err := exec.Start(context.Background(), StartRequest{Query: "q"})
	require.ErrorIs(t, err, workflow.ErrEmptyParticipants)

	all, err := memStore.List(context.Background(), store.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, all, "a rejected plan must leave no workflow record")
}

func TestStart_StepFailureHaltsPipeline(t *testing.T) {
	invoker := agent.NewScriptedInvoker().
		Respond("a1", "first output").
		Fail("a2", errors.New("rate limited")).
		Respond("a3", "never used")
	exec, memStore := newTestExecutor(invoker)

	state, err := exec.Start(context.Background(), StartRequest{
		Query:        "q",
		Participants: []workflow.AgentID{"a1", "a2", "a3"},
	})
	require.NoError(t, err)

	require.Equal(t, workflow.StatusFailed, state.Status)
	require.Equal(t, "rate limited", state.Steps[1].Error)
	require.False(t, state.Steps[1].Completed)
	require.False(t, state.Steps[2].Completed)
	require.Equal(t, 1, state.CurrentStep)

	// a3 was never invoked
	for _, call := range invoker.Calls() {
		require.NotEqual(t, workflow.AgentID("a3"), call.Agent)
	}

	// Failure was persisted
	stored, err := memStore.Load(context.Background(), state.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusFailed, stored.Status)
	require.Equal(t, "rate limited", stored.Steps[1].Error)
}

func TestStart_TimeoutFailsStepWithTimeoutError(t *testing.T) {
	slow := agent.InvokeFunc(func(ctx context.Context, _ workflow.AgentID, _ string) (agent.Result, error) {
		<-ctx.Done()
		return agent.Result{}, ctx.Err()
	})
	exec, _ := newTestExecutor(slow, WithStepTimeout(20*time.Millisecond))

	state, err := exec.Start(context.Background(), StartRequest{
		Query:        "q",
		Participants: []workflow.AgentID{"a1"},
	})
	require.NoError(t, err)

	require.Equal(t, workflow.StatusFailed, state.Status)
	require.Equal(t, "timeout", state.Steps[0].Error)
}

func TestContinue_NoOpOnTerminalWorkflow(t *testing.T) {
	invoker := agent.NewScriptedInvoker().Respond("a1", "done")
	exec, _ := newTestExecutor(invoker)

	state, err := exec.Start(context.Background(), StartRequest{
		Query:        "q",
		Participants: []workflow.AgentID{"a1"},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAwaitingReview, state.Status)

	resumed, err := exec.Continue(context.Background(), state.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAwaitingReview, resumed.Status)
	require.Len(t, invoker.Calls(), 1, "terminal workflow must not invoke agents again")
}

func TestContinue_ResumesAtCurrentStep(t *testing.T) {
	ctx := context.Background()
	invoker := agent.NewScriptedInvoker().
		Respond("a2", "resumed output").
		Respond("a3", "final output")
	exec, memStore := newTestExecutor(invoker)

	// A workflow persisted mid-run, as after a process restart
	specs, err := workflow.Plan("q", []workflow.AgentID{"a1", "a2", "a3"}, false)
	require.NoError(t, err)
	state, err := workflow.NewState(workflow.NewWorkflowID(), "q", specs, nil)
	require.NoError(t, err)
	require.NoError(t, state.CompleteStep(0, "pre-restart output"))
	require.NoError(t, memStore.Save(ctx, state))

	resumed, err := exec.Continue(ctx, state.ID)
	require.NoError(t, err)

	require.Equal(t, workflow.StatusAwaitingReview, resumed.Status)
	require.NoError(t, resumed.CheckPrefixInvariant())

	calls := invoker.Calls()
	require.Len(t, calls, 2, "completed step 0 must not re-execute")
	require.Equal(t, workflow.AgentID("a2"), calls[0].Agent)
	require.Contains(t, calls[0].Prompt, "pre-restart output")
}

func TestContinue_MissingWorkflow(t *testing.T) {
	exec, _ := newTestExecutor(agent.NewScriptedInvoker())
	_, err := exec.Continue(context.Background(), workflow.NewWorkflowID())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancel_IdleWorkflowPersistsCancellation(t *testing.T) {
	ctx := context.Background()
	exec, memStore := newTestExecutor(agent.NewScriptedInvoker())

	specs, err := workflow.Plan("q", []workflow.AgentID{"a1", "a2"}, false)
	require.NoError(t, err)
	state, err := workflow.NewState(workflow.NewWorkflowID(), "q", specs, nil)
	require.NoError(t, err)
	require.NoError(t, memStore.Save(ctx, state))

	require.NoError(t, exec.Cancel(ctx, state.ID))

	stored, err := memStore.Load(ctx, state.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCancelled, stored.Status)
	require.NotNil(t, stored.CompletedAt)
}

func TestCancel_MidFlightResultIsDiscarded(t *testing.T) {
	invoking := make(chan struct{})
	unblock := make(chan struct{})
	invoker := agent.InvokeFunc(func(ctx context.Context, _ workflow.AgentID, _ string) (agent.Result, error) {
		close(invoking)
		<-unblock
		return agent.Result{Content: "late result"}, nil
	})
	exec, memStore := newTestExecutor(invoker)

	done := make(chan *workflow.State, 1)
	go func() {
		state, err := exec.Start(context.Background(), StartRequest{
			Query:        "q",
			Participants: []workflow.AgentID{"a1", "a2"},
		})
		if err == nil {
			done <- state
		}
		close(done)
	}()

	<-invoking
	require.NoError(t, exec.Cancel(context.Background(), workflowIDFromStore(t, memStore)))
	close(unblock)

	state, ok := <-done
	require.True(t, ok, "Start should return the cancelled state, not an error")
	require.Equal(t, workflow.StatusCancelled, state.Status)
	require.False(t, state.Steps[0].Completed, "in-flight result must not be applied after cancel")
	require.NotContains(t, state.Document, "late result")
}

// workflowIDFromStore returns the single workflow id in the store, waiting
// briefly for the initial save to land.
func workflowIDFromStore(t *testing.T, s *store.MemoryStore) workflow.WorkflowID {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		all, err := s.List(context.Background(), store.ListFilter{})
		require.NoError(t, err)
		if len(all) == 1 {
			return all[0].ID
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("workflow never appeared in store")
	return ""
}

func TestCancel_TerminalWorkflowRejected(t *testing.T) {
	invoker := agent.NewScriptedInvoker().Respond("a1", "done")
	exec, _ := newTestExecutor(invoker)

	state, err := exec.Start(context.Background(), StartRequest{
		Query:        "q",
		Participants: []workflow.AgentID{"a1"},
	})
	require.NoError(t, err)

	require.Error(t, exec.Cancel(context.Background(), state.ID))
}

// flakyStore fails Save after a set number of successes.
type flakyStore struct {
	store.WorkflowStore
	mu        sync.Mutex
	succeed   int
	saveCount int
}

func (f *flakyStore) Save(ctx context.Context, state *workflow.State) error {
	f.mu.Lock()
	f.saveCount++
	count := f.saveCount
	f.mu.Unlock()
	if count > f.succeed {
		return fmt.Errorf("disk full")
	}
	return f.WorkflowStore.Save(ctx, state)
}

func TestStart_PersistFailureHaltsAdvancement(t *testing.T) {
	invoker := agent.NewScriptedInvoker().
		Respond("a1", "first").
		Respond("a2", "second")
	flaky := &flakyStore{WorkflowStore: store.NewMemoryStore(), succeed: 1}
	exec := New(flaky, invoker, prompt.NewBuilder(nil))

	// Save 1 is the initial state; save 2 (step 0 result) fails
	_, err := exec.Start(context.Background(), StartRequest{
		Query:        "q",
		Participants: []workflow.AgentID{"a1", "a2"},
	})
	require.Error(t, err)
	require.Len(t, invoker.Calls(), 1, "step 1 must not start after step 0 failed to persist")
}

func TestGetStatus_ReturnsStoredState(t *testing.T) {
	invoker := agent.NewScriptedInvoker().Respond("a1", "done")
	exec, _ := newTestExecutor(invoker)

	state, err := exec.Start(context.Background(), StartRequest{
		Query:        "q",
		Participants: []workflow.AgentID{"a1"},
	})
	require.NoError(t, err)

	status, err := exec.GetStatus(context.Background(), state.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAwaitingReview, status.Status)
}

func TestStart_PublishesLifecycleEvents(t *testing.T) {
	invoker := agent.NewScriptedInvoker().
		Respond("a1", "one").
		Respond("a2", "two")
	exec, _ := newTestExecutor(invoker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := exec.Subscribe(ctx)

	state, err := exec.Start(ctx, StartRequest{
		Query:        "q",
		Participants: []workflow.AgentID{"a1", "a2"},
	})
	require.NoError(t, err)

	var types []pubsub.EventType
	deadline := time.After(2 * time.Second)
	for len(types) < 4 {
		select {
		case evt := <-events:
			require.Equal(t, state.ID, evt.Payload.ID)
			types = append(types, evt.Type)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %v", types)
		}
	}
	require.Equal(t, []pubsub.EventType{
		pubsub.CreatedEvent, pubsub.UpdatedEvent, pubsub.UpdatedEvent, pubsub.CompletedEvent,
	}, types)
}

func TestConcurrentContinue_EachStepRunsOnce(t *testing.T) {
	ctx := context.Background()
	invoker := agent.NewScriptedInvoker().
		Respond("a1", "one").
		Respond("a2", "two").
		Respond("a3", "three")
	exec, memStore := newTestExecutor(invoker)

	specs, err := workflow.Plan("q", []workflow.AgentID{"a1", "a2", "a3"}, false)
	require.NoError(t, err)
	state, err := workflow.NewState(workflow.NewWorkflowID(), "q", specs, nil)
	require.NoError(t, err)
	require.NoError(t, memStore.Save(ctx, state))

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = exec.Continue(ctx, state.ID)
		}()
	}
	wg.Wait()

	final, err := memStore.Load(ctx, state.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusAwaitingReview, final.Status)
	require.Len(t, invoker.Calls(), 3, "serialized continues must execute each step exactly once")
}
