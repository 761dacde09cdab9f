package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MightyPrytanis/roundtable/internal/engine"
	"github.com/MightyPrytanis/roundtable/internal/pubsub"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

var (
	runAgents      []string
	runAttachments []string
	runQuiet       bool
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Run a query through a pipeline of agents",
	Long: `Run a query through an ordered pipeline of agents. Each --agent flag
adds one participant; agents execute in flag order, one step each.

Examples:
  # Three agents collaborate on a plan
  roundtable run "Develop a marketing plan" -a analyst -a strategist -a writer

  # Single agent produces the complete deliverable
  roundtable run "Write a project readme" -a writer

  # With attachment context (ids are file names under attachments_dir)
  roundtable run "Review this design" -a reviewer --attach design.md`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runAgents, "agent", "a", nil,
		"participant agent id, in execution order (repeatable)")
	runCmd.Flags().StringArrayVar(&runAttachments, "attach", nil,
		"attachment id to include as context (repeatable)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false,
		"print only the final document")
	rootCmd.AddCommand(runCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	if len(runAgents) == 0 {
		return fmt.Errorf("at least one --agent is required")
	}

	s, err := buildStack()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer s.close(context.Background())

	participants := make([]workflow.AgentID, len(runAgents))
	for i, a := range runAgents {
		participants[i] = workflow.AgentID(a)
	}

	attachments := make([]workflow.AttachmentRef, len(runAttachments))
	for i, id := range runAttachments {
		attachments[i] = workflow.AttachmentRef{ID: id, DisplayName: id}
	}

	if !runQuiet {
		go printProgress(ctx, s.executor, cmd.OutOrStdout())
	}

	state, err := s.executor.Start(ctx, engine.StartRequest{
		Query:        args[0],
		Participants: participants,
		Attachments:  attachments,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch state.Status {
	case workflow.StatusAwaitingReview:
		if !runQuiet {
			fmt.Fprintf(out, "\nworkflow %s completed (%d steps)\n", state.ID, len(state.Steps))
			printMetrics(out, s)
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, state.Document)
	case workflow.StatusFailed:
		step, errText := failingStep(state)
		return fmt.Errorf("workflow %s failed at step %d of %d: %s",
			state.ID, step+1, len(state.Steps), errText)
	case workflow.StatusCancelled:
		fmt.Fprintf(out, "workflow %s cancelled at step %d of %d\n",
			state.ID, state.CurrentStep+1, len(state.Steps))
	}
	return nil
}

// printProgress streams status events until ctx is cancelled.
func printProgress(ctx context.Context, exec *engine.Executor, out interface{ Write([]byte) (int, error) }) {
	for evt := range exec.Subscribe(ctx) {
		u := evt.Payload
		switch evt.Type {
		case pubsub.CreatedEvent:
			fmt.Fprintf(out, "workflow %s: %d steps planned\n", u.ID, u.TotalSteps)
		case pubsub.UpdatedEvent:
			fmt.Fprintf(out, "step %d/%d done\n", u.CurrentStep, u.TotalSteps)
		case pubsub.FailedEvent:
			fmt.Fprintf(out, "step %d/%d failed: %s\n", u.CurrentStep+1, u.TotalSteps, u.Error)
		}
	}
}

func printMetrics(out interface{ Write([]byte) (int, error) }, s *stack) {
	for _, summary := range s.metrics.Summary() {
		fmt.Fprintf(out, "  %s: %d step(s), avg %s, %d output chars\n",
			summary.Agent, summary.Steps, summary.AvgDuration().Round(time.Millisecond), summary.OutputChars)
	}
}

// failingStep returns the index and error text of the failed step.
func failingStep(state *workflow.State) (int, string) {
	for _, step := range state.Steps {
		if step.Error != "" {
			return step.Index, step.Error
		}
	}
	return state.CurrentStep, "unknown error"
}
