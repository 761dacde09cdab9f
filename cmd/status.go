package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Show a workflow's status and step progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := workflow.WorkflowID(args[0])
		if !id.IsValid() {
			return fmt.Errorf("invalid workflow id %q", args[0])
		}

		s, err := buildStatusStack()
		if err != nil {
			return err
		}
		defer s.close(context.Background())

		state, err := s.executor.GetStatus(cmd.Context(), id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "workflow:  %s\n", state.ID)
		fmt.Fprintf(out, "status:    %s\n", state.Status)
		fmt.Fprintf(out, "progress:  %d/%d steps\n", state.CompletedCount(), len(state.Steps))
		fmt.Fprintf(out, "query:     %s\n", state.OriginalQuery)
		fmt.Fprintf(out, "created:   %s\n", state.CreatedAt.Format("2006-01-02 15:04:05"))
		if state.CompletedAt != nil {
			fmt.Fprintf(out, "finished:  %s\n", state.CompletedAt.Format("2006-01-02 15:04:05"))
		}

		fmt.Fprintln(out)
		for _, step := range state.Steps {
			marker := "[ ]"
			detail := ""
			switch {
			case step.Completed:
				marker = "[x]"
			case step.Error != "":
				marker = "[!]"
				detail = " error: " + step.Error
			}
			fmt.Fprintf(out, "  %s step %d (%s)%s\n", marker, step.Index+1, step.Agent, detail)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
