package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// WorkflowModel represents the database row for the workflows table.
// Fields map directly to SQL columns with Unix timestamps for time values.
type WorkflowModel struct {
	ID            string
	OriginalQuery string
	Participants  string  // JSON encoded []AgentID
	Attachments   *string // nullable, JSON encoded []AttachmentRef
	CurrentStep   int
	Document      string
	Status        string

	CreatedAt   int64  // Unix timestamp
	UpdatedAt   int64  // Unix timestamp
	CompletedAt *int64 // Unix timestamp, nullable
}

// StepRecordModel represents the database row for the step_records table.
type StepRecordModel struct {
	WorkflowID  string
	StepIndex   int
	Agent       string
	Objective   string
	Completed   bool
	Output      *string // nullable
	CompletedAt *int64  // Unix timestamp, nullable
	Error       string
}

// toWorkflowModel converts a domain State to a database WorkflowModel.
func toWorkflowModel(s *workflow.State) (*WorkflowModel, error) {
	participants, err := json.Marshal(s.Participants)
	if err != nil {
		return nil, fmt.Errorf("failed to encode participants: %w", err)
	}

	m := &WorkflowModel{
		ID:            s.ID.String(),
		OriginalQuery: s.OriginalQuery,
		Participants:  string(participants),
		CurrentStep:   s.CurrentStep,
		Document:      s.Document,
		Status:        s.Status.String(),
		CreatedAt:     s.CreatedAt.Unix(),
		UpdatedAt:     s.UpdatedAt.Unix(),
	}
	if len(s.Attachments) > 0 {
		attachments, err := json.Marshal(s.Attachments)
		if err != nil {
			return nil, fmt.Errorf("failed to encode attachments: %w", err)
		}
		encoded := string(attachments)
		m.Attachments = &encoded
	}
	if s.CompletedAt != nil {
		completedAt := s.CompletedAt.Unix()
		m.CompletedAt = &completedAt
	}
	return m, nil
}

// toStepRecordModels converts a State's step records to database models.
func toStepRecordModels(s *workflow.State) []StepRecordModel {
	models := make([]StepRecordModel, len(s.Steps))
	for i, step := range s.Steps {
		models[i] = StepRecordModel{
			WorkflowID: s.ID.String(),
			StepIndex:  step.Index,
			Agent:      string(step.Agent),
			Objective:  step.Objective,
			Completed:  step.Completed,
			Output:     step.Output,
			Error:      step.Error,
		}
		if step.CompletedAt != nil {
			completedAt := step.CompletedAt.Unix()
			models[i].CompletedAt = &completedAt
		}
	}
	return models
}

// toDomain converts a WorkflowModel plus its step rows to a domain State.
func (m *WorkflowModel) toDomain(steps []StepRecordModel) (*workflow.State, error) {
	var participants []workflow.AgentID
	if err := json.Unmarshal([]byte(m.Participants), &participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}

	var attachments []workflow.AttachmentRef
	if m.Attachments != nil {
		if err := json.Unmarshal([]byte(*m.Attachments), &attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
	}

	records := make([]workflow.StepRecord, len(steps))
	for i, step := range steps {
		records[i] = workflow.StepRecord{
			Index:     step.StepIndex,
			Agent:     workflow.AgentID(step.Agent),
			Objective: step.Objective,
			Completed: step.Completed,
			Output:    step.Output,
			Error:     step.Error,
		}
		if step.CompletedAt != nil {
			t := time.Unix(*step.CompletedAt, 0)
			records[i].CompletedAt = &t
		}
	}

	state := &workflow.State{
		ID:            workflow.WorkflowID(m.ID),
		OriginalQuery: m.OriginalQuery,
		Participants:  participants,
		Steps:         records,
		CurrentStep:   m.CurrentStep,
		Document:      m.Document,
		Attachments:   attachments,
		Status:        workflow.Status(m.Status),
		CreatedAt:     time.Unix(m.CreatedAt, 0),
		UpdatedAt:     time.Unix(m.UpdatedAt, 0),
	}
	if m.CompletedAt != nil {
		t := time.Unix(*m.CompletedAt, 0)
		state.CompletedAt = &t
	}
	return state, nil
}
