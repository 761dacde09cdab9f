// Package metrics collects in-process step execution metrics: per-agent
// durations, prompt and output sizes, and failure counts.
package metrics

import (
	"sync"
	"time"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// StepObservation records one executed step.
type StepObservation struct {
	Agent       workflow.AgentID
	Duration    time.Duration
	PromptChars int
	OutputChars int
	Failed      bool
}

// AgentSummary aggregates observations for one agent.
type AgentSummary struct {
	Agent         workflow.AgentID
	Steps         int
	Failures      int
	TotalDuration time.Duration
	PromptChars   int
	OutputChars   int
}

// AvgDuration returns the mean step duration for the agent.
func (s AgentSummary) AvgDuration() time.Duration {
	if s.Steps == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Steps)
}

// Recorder accumulates step observations. Safe for concurrent use.
type Recorder struct {
	mu           sync.Mutex
	observations []StepObservation
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe records one step execution.
func (r *Recorder) Observe(obs StepObservation) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = append(r.observations, obs)
}

// Count returns the number of recorded observations.
func (r *Recorder) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observations)
}

// Summary aggregates observations per agent.
func (r *Recorder) Summary() map[workflow.AgentID]AgentSummary {
	out := make(map[workflow.AgentID]AgentSummary)
	if r == nil {
		return out
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, obs := range r.observations {
		summary := out[obs.Agent]
		summary.Agent = obs.Agent
		summary.Steps++
		summary.TotalDuration += obs.Duration
		summary.PromptChars += obs.PromptChars
		summary.OutputChars += obs.OutputChars
		if obs.Failed {
			summary.Failures++
		}
		out[obs.Agent] = summary
	}
	return out
}
