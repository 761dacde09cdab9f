// Package store defines durable persistence for workflow state. The engine
// persists the whole aggregate before advancing past a step, so any
// implementation must make Save durable on return.
package store

import (
	"context"
	"errors"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// ErrNotFound is returned when no workflow exists for the given id.
var ErrNotFound = errors.New("workflow not found")

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	Status workflow.Status
	Limit  int
}

// WorkflowStore persists workflow aggregates keyed by workflow id.
type WorkflowStore interface {
	// Load returns the stored state, or ErrNotFound.
	Load(ctx context.Context, id workflow.WorkflowID) (*workflow.State, error)

	// Save writes the full aggregate. Durable on return.
	Save(ctx context.Context, state *workflow.State) error

	// List returns stored workflows newest first, filtered.
	List(ctx context.Context, filter ListFilter) ([]*workflow.State, error)

	// Delete removes a workflow and its step records. Deleting a missing
	// workflow returns ErrNotFound.
	Delete(ctx context.Context, id workflow.WorkflowID) error
}
