// Package prompt assembles the full prompt for one workflow step: role
// framing, the original query, attachment content, and a digest of prior
// step outputs. Assembly is deterministic given the same state and
// attachment bytes.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/MightyPrytanis/roundtable/internal/attachment"
	"github.com/MightyPrytanis/roundtable/internal/log"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

const (
	// DefaultPreviewLimit caps attachment content shown after the first step.
	DefaultPreviewLimit = 400
	// DefaultFirstStepBudget caps total attachment content on the first step,
	// where agents get full documents when they fit.
	DefaultFirstStepBudget = 16000
	// DefaultDigestBudget caps the prior-step digest across all completed
	// steps.
	DefaultDigestBudget = 12000

	// NotAccessibleMarker replaces content when an attachment cannot be read.
	NotAccessibleMarker = "[file not accessible]"
	// TruncatedMarker flags shortened attachment content.
	TruncatedMarker = "[TRUNCATED]"
)

// Builder builds step prompts. The zero value is not usable; construct with
// NewBuilder.
type Builder struct {
	attachments     attachment.Store
	previewLimit    int
	firstStepBudget int
	digestBudget    int
}

// Option configures a Builder.
type Option func(*Builder)

// WithPreviewLimit overrides the per-attachment preview size.
func WithPreviewLimit(n int) Option {
	return func(b *Builder) { b.previewLimit = n }
}

// WithFirstStepBudget overrides the total attachment budget for step 0.
func WithFirstStepBudget(n int) Option {
	return func(b *Builder) { b.firstStepBudget = n }
}

// WithDigestBudget overrides the total prior-step digest budget.
func WithDigestBudget(n int) Option {
	return func(b *Builder) { b.digestBudget = n }
}

// NewBuilder creates a Builder reading attachment content from store.
// A nil store is allowed for workflows that never reference attachments.
func NewBuilder(store attachment.Store, opts ...Option) *Builder {
	b := &Builder{
		attachments:     store,
		previewLimit:    DefaultPreviewLimit,
		firstStepBudget: DefaultFirstStepBudget,
		digestBudget:    DefaultDigestBudget,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the prompt for the given step. The error path covers only
// invalid step indexes; attachment fetch failures degrade to placeholder
// text and never fail the build.
func (b *Builder) Build(ctx context.Context, state *workflow.State, stepIndex int) (string, error) {
	if stepIndex < 0 || stepIndex >= len(state.Steps) {
		return "", fmt.Errorf("step index %d out of range (plan has %d steps)", stepIndex, len(state.Steps))
	}

	step := state.Steps[stepIndex]
	total := len(state.Steps)

	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, contributing step %d of %d in a collaborative workflow.\n",
		step.Agent, stepIndex+1, total)
	fmt.Fprintf(&sb, "Your objective: %s\n", step.Objective)

	fmt.Fprintf(&sb, "\n## Original Request\n\n%s\n", state.OriginalQuery)

	if len(state.Attachments) > 0 {
		sb.WriteString("\n## Attached Documents\n")
		b.writeAttachments(ctx, &sb, state, stepIndex)
	}

	if digest := b.buildDigest(state); digest != "" {
		sb.WriteString("\n## Previous Contributions\n")
		sb.WriteString(digest)
	}

	if stepIndex == total-1 {
		sb.WriteString("\nThis is the final step. Produce the complete deliverable, " +
			"not an outline or a summary of next steps; no one else will refine your output.\n")
	}

	return sb.String(), nil
}

// writeAttachments renders every attachment reference. The first step gets
// full content while the combined size stays within budget; later steps
// always get the bounded preview form.
func (b *Builder) writeAttachments(ctx context.Context, sb *strings.Builder, state *workflow.State, stepIndex int) {
	fullAllowed := stepIndex == 0
	remaining := b.firstStepBudget

	for _, ref := range state.Attachments {
		fmt.Fprintf(sb, "\n### %s\n\n", ref.DisplayName)

		if b.attachments == nil {
			sb.WriteString(NotAccessibleMarker + "\n")
			continue
		}

		data, err := b.attachments.Get(ctx, ref.ID)
		if err != nil {
			log.Warn(log.CatPrompt, "attachment unavailable", "id", ref.ID, "error", err.Error())
			sb.WriteString(NotAccessibleMarker + "\n")
			continue
		}

		content := string(data)
		if fullAllowed && len(content) <= remaining {
			sb.WriteString(content)
			sb.WriteString("\n")
			remaining -= len(content)
			continue
		}

		if len(content) <= b.previewLimit {
			sb.WriteString(content)
			sb.WriteString("\n")
			continue
		}

		sb.WriteString(content[:b.previewLimit])
		fmt.Fprintf(sb, "\n%s (%d of %d characters shown)\n", TruncatedMarker, b.previewLimit, len(content))
	}
}

// buildDigest concatenates completed step outputs in step order. The total
// character budget is split evenly across completed steps.
func (b *Builder) buildDigest(state *workflow.State) string {
	completed := state.CompletedCount()
	if completed == 0 {
		return ""
	}

	perStep := b.digestBudget / completed
	var sb strings.Builder

	for _, rec := range state.Steps {
		if !rec.Completed || rec.Output == nil {
			continue
		}
		output := *rec.Output
		if len(output) > perStep {
			output = output[:perStep] + "\n" + TruncatedMarker
		}
		fmt.Fprintf(&sb, "\nStep %d (%s): %s\n", rec.Index+1, rec.Agent, output)
	}

	return sb.String()
}
