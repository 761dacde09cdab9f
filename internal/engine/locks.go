package engine

import (
	"sync"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// workflowLocks serializes executor access per workflow id. Each workflow
// has exactly one writer at a time; concurrent Continue calls on the same
// id queue behind the holder instead of double-advancing a step.
type workflowLocks struct {
	mu    sync.Mutex
	locks map[workflow.WorkflowID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newWorkflowLocks() *workflowLocks {
	return &workflowLocks{locks: make(map[workflow.WorkflowID]*lockEntry)}
}

// acquire blocks until the workflow's lock is held and returns the release
// function.
func (l *workflowLocks) acquire(id workflow.WorkflowID) func() {
	entry := l.ref(id)
	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.unref(id)
	}
}

// tryAcquire acquires the lock only if it is free. Used by Cancel so a
// cancel request never blocks behind an in-flight step.
func (l *workflowLocks) tryAcquire(id workflow.WorkflowID) (func(), bool) {
	entry := l.ref(id)
	if !entry.mu.TryLock() {
		l.unref(id)
		return nil, false
	}
	return func() {
		entry.mu.Unlock()
		l.unref(id)
	}, true
}

func (l *workflowLocks) ref(id workflow.WorkflowID) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[id]
	if !ok {
		entry = &lockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (l *workflowLocks) unref(id workflow.WorkflowID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, id)
	}
}
