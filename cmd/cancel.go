package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <workflow-id>",
	Short: "Cancel an in-progress workflow",
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

		if err := s.executor.Cancel(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "workflow %s cancelled\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
