package store

import (
	"context"
	"sort"
	"sync"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// MemoryStore is an in-memory WorkflowStore for tests and ephemeral runs.
// States are deep-copied on the way in and out so callers never share
// mutable step slices with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[workflow.WorkflowID]*workflow.State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[workflow.WorkflowID]*workflow.State),
	}
}

// Load returns a copy of the stored state.
func (m *MemoryStore) Load(_ context.Context, id workflow.WorkflowID) (*workflow.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

// Save stores a copy of the state.
func (m *MemoryStore) Save(_ context.Context, state *workflow.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[state.ID] = state.Clone()
	return nil
}

// List returns stored workflows newest first.
func (m *MemoryStore) List(_ context.Context, filter ListFilter) ([]*workflow.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*workflow.State, 0, len(m.workflows))
	for _, state := range m.workflows {
		if filter.Status != "" && state.Status != filter.Status {
			continue
		}
		out = append(out, state.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Delete removes a workflow.
func (m *MemoryStore) Delete(_ context.Context, id workflow.WorkflowID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(m.workflows, id)
	return nil
}

var _ WorkflowStore = (*MemoryStore)(nil)
