package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarmiento-reclamos/reclamos/internal/orchestrator"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve ID",
	Short: "Mark a report as resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatusChange(cmd, args[0], "Reclamo resuelto", (*orchestrator.Orchestrator).Resolve)
	},
}

var reactivateCmd = &cobra.Command{
	Use:   "reactivate ID",
	Short: "Move a resolved report back to active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatusChange(cmd, args[0], "Reclamo reactivado", (*orchestrator.Orchestrator).Reactivate)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Permanently delete a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to delete %s without --yes", args[0])
		}
		return runStatusChange(cmd, args[0], "Reclamo eliminado", (*orchestrator.Orchestrator).Delete)
	},
}

func init() {
	deleteCmd.Flags().BoolP("yes", "y", false, "confirm the deletion")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(reactivateCmd)
	rootCmd.AddCommand(deleteCmd)
}

type statusAction func(*orchestrator.Orchestrator, context.Context, string) (stats.Summary, error)

func runStatusChange(cmd *cobra.Command, id, done string, action statusAction) error {
	ctx := context.Background()

	s, cleanup, err := resolveStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer cleanup()

	orch := orchestrator.New(s, cfg)
	summary, err := action(orch, ctx, id)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %s\n", done, id)
	fmt.Fprintf(w, "Total: %d  Activos: %d  Resueltos: %d\n", summary.Total, summary.Active, summary.Resolved)
	return nil
}
