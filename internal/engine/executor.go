// Package engine drives the sequential multi-agent pipeline. The executor
// owns the workflow state machine: it plans once, then for each step builds
// a prompt, invokes the assigned agent, persists the result, and advances.
// Steps within one workflow never run in parallel; independent workflows
// are fully isolated from each other.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/MightyPrytanis/roundtable/internal/agent"
	"github.com/MightyPrytanis/roundtable/internal/log"
	"github.com/MightyPrytanis/roundtable/internal/metrics"
	"github.com/MightyPrytanis/roundtable/internal/prompt"
	"github.com/MightyPrytanis/roundtable/internal/pubsub"
	"github.com/MightyPrytanis/roundtable/internal/store"
	"github.com/MightyPrytanis/roundtable/internal/tracing"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// DefaultStepTimeout bounds a single agent invocation.
const DefaultStepTimeout = 5 * time.Minute

// timeoutErrText is recorded on a step whose invocation exceeded the
// step timeout.
const timeoutErrText = "timeout"

// StartRequest describes a new workflow.
type StartRequest struct {
	Query        string
	Participants []workflow.AgentID
	Attachments  []workflow.AttachmentRef
}

// Executor runs workflows to completion. All methods are safe for
// concurrent use; operations on the same workflow id are serialized.
type Executor struct {
	store   store.WorkflowStore
	invoker agent.Invoker
	prompts *prompt.Builder
	tracer  trace.Tracer
	metrics *metrics.Recorder
	broker  *pubsub.Broker[StatusUpdate]
	locks   *workflowLocks
	cancels *cancelRequests

	stepTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithStepTimeout bounds each agent invocation. A timed-out step fails
// the workflow exactly like an agent error.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) { e.stepTimeout = d }
}

// WithTracer sets the tracer used for workflow and step spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithMetrics sets the step metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Executor) { e.metrics = r }
}

// New creates an Executor.
func New(s store.WorkflowStore, invoker agent.Invoker, prompts *prompt.Builder, opts ...Option) *Executor {
	e := &Executor{
		store:       s,
		invoker:     invoker,
		prompts:     prompts,
		tracer:      noop.NewTracerProvider().Tracer("noop"),
		broker:      pubsub.NewBroker[StatusUpdate](),
		locks:       newWorkflowLocks(),
		cancels:     newCancelRequests(),
		stepTimeout: DefaultStepTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start plans and runs a new workflow. Planning errors are returned before
// any state is persisted, so a rejected request leaves no orphaned record.
// The returned state reflects how far the pipeline got: awaiting_review
// when every step completed, failed or cancelled otherwise.
func (e *Executor) Start(ctx context.Context, req StartRequest) (*workflow.State, error) {
	specs, err := workflow.Plan(req.Query, req.Participants, len(req.Attachments) > 0)
	if err != nil {
		return nil, fmt.Errorf("planning workflow: %w", err)
	}

	state, err := workflow.NewState(workflow.NewWorkflowID(), req.Query, specs, req.Attachments)
	if err != nil {
		return nil, fmt.Errorf("creating workflow state: %w", err)
	}

	release := e.locks.acquire(state.ID)
	defer release()

	ctx, span := e.tracer.Start(ctx, tracing.SpanWorkflowStart, trace.WithAttributes(
		attribute.String(tracing.AttrWorkflowID, state.ID.String()),
		attribute.Int(tracing.AttrStepCount, len(state.Steps)),
	))
	defer span.End()
	span.AddEvent(tracing.EventPlanCreated)

	if err := e.store.Save(ctx, state); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("persisting new workflow: %w", err)
	}

	log.Info(log.CatEngine, "workflow started",
		"id", state.ID, "steps", len(state.Steps), "agents", len(req.Participants))
	e.publish(pubsub.CreatedEvent, state, "")

	return e.run(ctx, state)
}

// Continue resumes a workflow at its current step. Invoking it on a
// terminal or exhausted workflow is a no-op that returns the stored state,
// which makes retries after a process restart idempotent.
func (e *Executor) Continue(ctx context.Context, id workflow.WorkflowID) (*workflow.State, error) {
	release := e.locks.acquire(id)
	defer release()

	state, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if state.IsTerminal() {
		return state, nil
	}
	if err := state.CheckPrefixInvariant(); err != nil {
		return nil, fmt.Errorf("stored workflow %s is inconsistent: %w", id, err)
	}

	log.Info(log.CatEngine, "workflow resumed", "id", id, "step", state.CurrentStep)
	return e.run(ctx, state)
}

// GetStatus returns the stored state for a workflow.
func (e *Executor) GetStatus(ctx context.Context, id workflow.WorkflowID) (*workflow.State, error) {
	return e.store.Load(ctx, id)
}

// Cancel requests cancellation of a workflow. If no step is in flight the
// cancellation is applied and persisted immediately; otherwise the running
// executor observes the request before starting the next step or applying
// the in-flight step's result.
func (e *Executor) Cancel(ctx context.Context, id workflow.WorkflowID) error {
	e.cancels.request(id)

	release, ok := e.locks.tryAcquire(id)
	if !ok {
		log.Info(log.CatEngine, "cancel requested for running workflow", "id", id)
		return nil
	}
	defer release()

	state, err := e.store.Load(ctx, id)
	if err != nil {
		e.cancels.clear(id)
		return err
	}
	if state.IsTerminal() {
		e.cancels.clear(id)
		return fmt.Errorf("workflow %s is already %s", id, state.Status)
	}

	return e.applyCancellation(ctx, state)
}

// run advances the workflow until a terminal status or plan exhaustion.
// The caller must hold the workflow's lock.
func (e *Executor) run(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	defer e.cancels.clear(state.ID)

	for !state.IsTerminal() && !state.Exhausted() {
		if e.cancels.requested(state.ID) {
			if err := e.applyCancellation(ctx, state); err != nil {
				return state, err
			}
			return state, nil
		}
		if err := ctx.Err(); err != nil {
			return state, fmt.Errorf("workflow %s interrupted: %w", state.ID, err)
		}

		if err := e.executeStep(ctx, state); err != nil {
			return state, err
		}
	}

	if !state.IsTerminal() && state.Exhausted() {
		if err := state.TransitionTo(workflow.StatusAwaitingReview); err != nil {
			return state, err
		}
		if err := e.store.Save(ctx, state); err != nil {
			return state, fmt.Errorf("persisting completed workflow: %w", err)
		}
		log.Info(log.CatEngine, "workflow completed", "id", state.ID, "steps", len(state.Steps))
		e.publish(pubsub.CompletedEvent, state, "")
	}

	return state, nil
}

// executeStep runs the current step. Agent failures and timeouts transition
// the workflow to failed and return nil; the returned error is reserved for
// engine-level faults (persistence failures, interruption) where the
// in-memory state may be ahead of the store and must not keep advancing.
func (e *Executor) executeStep(ctx context.Context, state *workflow.State) error {
	i := state.CurrentStep
	step := state.Steps[i]

	ctx, span := e.tracer.Start(ctx, tracing.SpanWorkflowStep, trace.WithAttributes(
		attribute.String(tracing.AttrWorkflowID, state.ID.String()),
		attribute.Int(tracing.AttrStepIndex, i),
		attribute.String(tracing.AttrStepAgent, string(step.Agent)),
	))
	defer span.End()

	promptText, err := e.prompts.Build(ctx, state, i)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("building prompt for step %d: %w", i, err)
	}
	span.SetAttributes(attribute.Int(tracing.AttrPromptChars, len(promptText)))

	log.Debug(log.CatEngine, "invoking agent",
		"id", state.ID, "step", i, "agent", step.Agent, "prompt_chars", len(promptText))

	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	result, invokeErr := e.invoker.Invoke(stepCtx, step.Agent, promptText)
	cancel()
	elapsed := time.Since(start)

	// The in-flight call may have completed after a cancel request; its
	// result must not be applied once the workflow is being cancelled.
	if e.cancels.requested(state.ID) {
		span.AddEvent(tracing.EventCancelRequested)
		return e.applyCancellation(ctx, state)
	}

	if invokeErr != nil {
		// Caller context cancellation is an interruption, not an agent
		// failure: the workflow stays in_progress and Continue resumes it.
		if ctx.Err() != nil && errors.Is(invokeErr, context.Canceled) {
			span.SetStatus(codes.Error, "interrupted")
			return fmt.Errorf("workflow %s interrupted at step %d: %w", state.ID, i, invokeErr)
		}

		errText := invokeErr.Error()
		if errors.Is(invokeErr, context.DeadlineExceeded) {
			errText = timeoutErrText
		}
		span.AddEvent(tracing.EventStepFailed)
		span.SetStatus(codes.Error, errText)
		e.metrics.Observe(metrics.StepObservation{
			Agent: step.Agent, Duration: elapsed, PromptChars: len(promptText), Failed: true,
		})
		return e.applyFailure(ctx, state, i, errText)
	}

	if err := state.CompleteStep(i, result.Content); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("recording step %d completion: %w", i, err)
	}
	if err := e.store.Save(ctx, state); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("persisting step %d result: %w", i, err)
	}

	span.SetAttributes(attribute.Int(tracing.AttrResponseChars, len(result.Content)))
	span.AddEvent(tracing.EventStepCompleted)
	e.metrics.Observe(metrics.StepObservation{
		Agent:       step.Agent,
		Duration:    elapsed,
		PromptChars: len(promptText),
		OutputChars: len(result.Content),
	})

	log.Info(log.CatEngine, "step completed",
		"id", state.ID, "step", i, "agent", step.Agent,
		"duration", elapsed.String(), "output_chars", len(result.Content))
	e.publish(pubsub.UpdatedEvent, state, "")
	return nil
}

// applyFailure records the step error, halts the pipeline, and persists.
// Later steps assume every prior output exists, so they never run after
// a failure.
func (e *Executor) applyFailure(ctx context.Context, state *workflow.State, i int, errText string) error {
	if err := state.FailStep(i, errText); err != nil {
		return fmt.Errorf("recording step %d failure: %w", i, err)
	}
	if err := state.TransitionTo(workflow.StatusFailed); err != nil {
		return err
	}
	if err := e.store.Save(ctx, state); err != nil {
		return fmt.Errorf("persisting failed workflow: %w", err)
	}

	log.Warn(log.CatEngine, "workflow failed",
		"id", state.ID, "step", i, "of", len(state.Steps), "error", errText)
	e.publish(pubsub.FailedEvent, state, errText)
	return nil
}

// applyCancellation transitions the workflow to cancelled and persists.
func (e *Executor) applyCancellation(ctx context.Context, state *workflow.State) error {
	defer e.cancels.clear(state.ID)

	if err := state.TransitionTo(workflow.StatusCancelled); err != nil {
		return err
	}
	if err := e.store.Save(ctx, state); err != nil {
		return fmt.Errorf("persisting cancelled workflow: %w", err)
	}

	log.Info(log.CatEngine, "workflow cancelled", "id", state.ID, "step", state.CurrentStep)
	e.publish(pubsub.CancelledEvent, state, "")
	return nil
}
