// Package workflow provides the foundational types and state management for
// sequential multi-agent collaboration. It defines the core domain entities
// including WorkflowID, Status, StepRecord, and State that enable running a
// self-driving pipeline of agent contributions over a single conversation.
package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentID identifies a participating agent. It is opaque to the engine;
// the invoker layer maps it to a concrete provider/model.
type AgentID string

// WorkflowID uniquely identifies a workflow instance. One workflow exists
// per conversation, so this doubles as the conversation identifier.
type WorkflowID string

// NewWorkflowID generates a new unique WorkflowID using UUID v4.
func NewWorkflowID() WorkflowID {
	return WorkflowID(uuid.New().String())
}

// String returns the string representation of the WorkflowID.
func (id WorkflowID) String() string {
	return string(id)
}

// IsValid returns true if the WorkflowID is a valid UUID format.
func (id WorkflowID) IsValid() bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(string(id))
	return err == nil
}

// Status represents the lifecycle state of a workflow.
// Valid transitions:
//
//	InProgress -> AwaitingReview, Failed, Cancelled
//	AwaitingReview -> (terminal)
//	Failed         -> (terminal)
//	Cancelled      -> (terminal)
type Status string

const (
	// StatusInProgress indicates the pipeline has unfinished steps.
	StatusInProgress Status = "in_progress"
	// StatusAwaitingReview indicates every step completed and the
	// deliverable is ready for the user.
	StatusAwaitingReview Status = "awaiting_review"
	// StatusFailed indicates a step failed fatally and the pipeline halted.
	StatusFailed Status = "failed"
	// StatusCancelled indicates the user cancelled the workflow between steps.
	StatusCancelled Status = "cancelled"
)

// validTransitions defines the allowed status transitions.
// The key is the current status, the value is a set of valid targets.
var validTransitions = map[Status]map[Status]bool{
	StatusInProgress: {
		StatusAwaitingReview: true,
		StatusFailed:         true,
		StatusCancelled:      true,
	},
	// Terminal states have no valid transitions
	StatusAwaitingReview: {},
	StatusFailed:         {},
	StatusCancelled:      {},
}

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if this is a recognized Status value.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal returns true if no further steps may execute in this status.
func (s Status) IsTerminal() bool {
	return s == StatusAwaitingReview || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo returns true if transitioning from the current status
// to the target is valid according to the workflow state machine.
func (s Status) CanTransitionTo(target Status) bool {
	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}
	return allowed[target]
}

// AttachmentRef references a user-attached document. The workflow holds
// references only; bytes live in the attachment store.
type AttachmentRef struct {
	ID          string
	DisplayName string
	MIMEHint    string
}

// StepSpec is the planner's description of one pipeline step.
type StepSpec struct {
	Index          int
	Agent          AgentID
	Objective      string
	HasAttachments bool
}

// StepRecord tracks the execution of one planned step.
// Output is set exactly once, at completion. Error and Output are
// mutually exclusive.
type StepRecord struct {
	Index       int
	Agent       AgentID
	Objective   string
	Completed   bool
	Output      *string
	CompletedAt *time.Time
	Error       string
}

// State is the root aggregate for one conversation's workflow.
// It is created once at plan time with all StepRecords pre-allocated and
// mutated exclusively by the executor, one field group per step completion.
type State struct {
	ID            WorkflowID
	OriginalQuery string
	Participants  []AgentID
	Steps         []StepRecord
	CurrentStep   int
	Document      string
	Attachments   []AttachmentRef
	Status        Status

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewState creates a workflow State from a plan. Every StepRecord starts
// incomplete; the aggregate starts at step 0 with status in_progress.
func NewState(id WorkflowID, query string, specs []StepSpec, attachments []AttachmentRef) (*State, error) {
	if !id.IsValid() {
		return nil, fmt.Errorf("invalid workflow id %q", id)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("plan must contain at least one step")
	}

	now := time.Now()
	steps := make([]StepRecord, len(specs))
	participants := make([]AgentID, len(specs))
	for i, spec := range specs {
		steps[i] = StepRecord{
			Index:     spec.Index,
			Agent:     spec.Agent,
			Objective: spec.Objective,
		}
		participants[i] = spec.Agent
	}

	refs := make([]AttachmentRef, len(attachments))
	copy(refs, attachments)

	return &State{
		ID:            id,
		OriginalQuery: query,
		Participants:  participants,
		Steps:         steps,
		CurrentStep:   0,
		Status:        StatusInProgress,
		Attachments:   refs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// TransitionTo attempts to transition the workflow to the target status.
// Returns an error if the transition is not valid from the current status.
func (s *State) TransitionTo(target Status) error {
	if !s.Status.CanTransitionTo(target) {
		return fmt.Errorf("invalid status transition from %s to %s", s.Status, target)
	}
	s.Status = target
	s.UpdatedAt = time.Now()

	if target.IsTerminal() && s.CompletedAt == nil {
		now := s.UpdatedAt
		s.CompletedAt = &now
	}

	return nil
}

// IsTerminal returns true if the workflow is in a terminal status.
func (s *State) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Exhausted returns true when every planned step has completed.
func (s *State) Exhausted() bool {
	return s.CurrentStep >= len(s.Steps)
}

// CompletedCount returns the number of completed steps.
func (s *State) CompletedCount() int {
	n := 0
	for _, step := range s.Steps {
		if step.Completed {
			n++
		}
	}
	return n
}

// CheckPrefixInvariant verifies the strict left-to-right ordering:
// CurrentStep equals the completed count and exactly the prefix
// Steps[0:CurrentStep] is completed.
func (s *State) CheckPrefixInvariant() error {
	if s.CurrentStep < 0 || s.CurrentStep > len(s.Steps) {
		return fmt.Errorf("current step %d out of range [0,%d]", s.CurrentStep, len(s.Steps))
	}
	for i, step := range s.Steps {
		if i < s.CurrentStep && !step.Completed {
			return fmt.Errorf("step %d precedes current step %d but is not completed", i, s.CurrentStep)
		}
		if i >= s.CurrentStep && step.Completed {
			return fmt.Errorf("step %d at or past current step %d is completed", i, s.CurrentStep)
		}
	}
	return nil
}

// CompleteStep records output for step i, appends a titled section to the
// collaborative document, and advances CurrentStep. It enforces the prefix
// invariant: only the current step may complete, exactly once.
func (s *State) CompleteStep(i int, output string) error {
	if i != s.CurrentStep {
		return fmt.Errorf("step %d is not the current step (%d)", i, s.CurrentStep)
	}
	if i >= len(s.Steps) {
		return fmt.Errorf("step %d out of range", i)
	}
	step := &s.Steps[i]
	if step.Completed {
		return fmt.Errorf("step %d already completed", i)
	}
	if step.Error != "" {
		return fmt.Errorf("step %d already failed", i)
	}

	now := time.Now()
	step.Output = &output
	step.Completed = true
	step.CompletedAt = &now

	s.Document += documentSection(step)
	s.CurrentStep++
	s.UpdatedAt = now
	return nil
}

// FailStep records an error for step i. The step stays incomplete and
// CurrentStep does not advance; no later step may ever start.
func (s *State) FailStep(i int, errText string) error {
	if i != s.CurrentStep {
		return fmt.Errorf("step %d is not the current step (%d)", i, s.CurrentStep)
	}
	if i >= len(s.Steps) {
		return fmt.Errorf("step %d out of range", i)
	}
	step := &s.Steps[i]
	if step.Completed {
		return fmt.Errorf("step %d already completed", i)
	}

	step.Error = errText
	s.UpdatedAt = time.Now()
	return nil
}

// documentSection renders one completed step as a titled document section.
func documentSection(step *StepRecord) string {
	output := ""
	if step.Output != nil {
		output = *step.Output
	}
	return fmt.Sprintf("\n## Step %d — %s (%s)\n\n%s\n", step.Index+1, step.Objective, step.Agent, output)
}

// Clone returns a deep copy of the state. Callers that hand state to
// polling clients use this so reads never observe a mid-transition mutation.
func (s *State) Clone() *State {
	out := *s
	out.Steps = make([]StepRecord, len(s.Steps))
	copy(out.Steps, s.Steps)
	for i := range out.Steps {
		if s.Steps[i].Output != nil {
			v := *s.Steps[i].Output
			out.Steps[i].Output = &v
		}
		if s.Steps[i].CompletedAt != nil {
			t := *s.Steps[i].CompletedAt
			out.Steps[i].CompletedAt = &t
		}
	}
	out.Participants = make([]AgentID, len(s.Participants))
	copy(out.Participants, s.Participants)
	out.Attachments = make([]AttachmentRef, len(s.Attachments))
	copy(out.Attachments, s.Attachments)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
