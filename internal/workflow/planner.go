package workflow

import (
	"fmt"
	"strings"
)

// Positions for role templates, indexed by step placement in the pipeline.
const (
	PositionOpening     = "opening"
	PositionDevelopment = "development"
	PositionSynthesis   = "synthesis"
	PositionSolo        = "solo"
	PositionGeneric     = "generic"
)

// ErrEmptyParticipants is returned when Plan is called with no agents.
// Callers validate participant lists before any workflow state exists, so
// a failed plan never leaves an orphaned workflow behind.
var ErrEmptyParticipants = fmt.Errorf("at least one participant is required")

// Plan maps a query and an ordered participant list to an ordered list of
// StepSpecs. It is pure and deterministic: one step per participant, in
// input order, so every explicitly selected agent contributes exactly once.
//
// Objectives come from positional role templates: the first step opens with
// analysis/decomposition, the last step synthesizes the deliverable, early
// middle steps develop, and any overflow past the template list uses the
// generic "specialized contribution, step N" template. A single participant
// receives the solo template, which demands a complete deliverable since no
// later step will finish the work.
func Plan(query string, participants []AgentID, hasAttachments bool) ([]StepSpec, error) {
	if len(participants) == 0 {
		return nil, ErrEmptyParticipants
	}

	templates := roleTemplates()
	specs := make([]StepSpec, len(participants))
	for i, agent := range participants {
		specs[i] = StepSpec{
			Index:          i,
			Agent:          agent,
			Objective:      objectiveFor(templates, i, len(participants)),
			HasAttachments: hasAttachments,
		}
	}
	return specs, nil
}

// objectiveFor selects the role objective for step i of n.
func objectiveFor(templates map[string]RoleTemplate, i, n int) string {
	switch {
	case n == 1:
		return templates[PositionSolo].Objective
	case i == 0:
		return templates[PositionOpening].Objective
	case i == n-1:
		return templates[PositionSynthesis].Objective
	case i == 1:
		return templates[PositionDevelopment].Objective
	default:
		tpl := templates[PositionGeneric].Objective
		if strings.Contains(tpl, "%d") {
			return fmt.Sprintf(tpl, i+1)
		}
		return tpl
	}
}
