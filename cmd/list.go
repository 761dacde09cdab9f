package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MightyPrytanis/roundtable/internal/store"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

var (
	listStatus string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows, newest first",
	Long: `List stored workflows, newest first.

Examples:
  roundtable list
  roundtable list --status failed
  roundtable list --limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := store.ListFilter{Limit: listLimit}
		if listStatus != "" {
			status := workflow.Status(listStatus)
			if !status.IsValid() {
				return fmt.Errorf("unknown status %q", listStatus)
			}
			filter.Status = status
		}

		s, err := buildStatusStack()
		if err != nil {
			return err
		}
		defer s.close(context.Background())

		states, err := s.db.WorkflowRepository().List(cmd.Context(), filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSTEPS\tCREATED\tQUERY")
		for _, state := range states {
			query := state.OriginalQuery
			if len(query) > 48 {
				query = query[:45] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
				state.ID, state.Status,
				state.CompletedCount(), len(state.Steps),
				state.CreatedAt.Format("2006-01-02 15:04"), query)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "",
		"filter by status (in_progress, awaiting_review, failed, cancelled)")
	listCmd.Flags().IntVar(&listLimit, "limit", 0,
		"maximum number of workflows to show")
	rootCmd.AddCommand(listCmd)
}
