package engine

import (
	"sync"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// cancelRequests tracks workflows with a pending cancellation. The running
// executor checks the set before each step and again before applying an
// in-flight step's result.
type cancelRequests struct {
	mu  sync.Mutex
	set map[workflow.WorkflowID]struct{}
}

func newCancelRequests() *cancelRequests {
	return &cancelRequests{set: make(map[workflow.WorkflowID]struct{})}
}

func (c *cancelRequests) request(id workflow.WorkflowID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set[id] = struct{}{}
}

func (c *cancelRequests) requested(id workflow.WorkflowID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.set[id]
	return ok
}

func (c *cancelRequests) clear(id workflow.WorkflowID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.set, id)
}
