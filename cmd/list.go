package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarmiento-reclamos/reclamos/internal/export"
	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/orchestrator"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	RunE:  runList,
}

func init() {
	f := listCmd.Flags()
	f.String("status", "all", "filter by status: all, active, resolved")
	f.String("type", "", "filter by report type")
	f.Bool("pending-photos", false, "only reports whose photos are still pending")
	f.String("output", "table", "output format: table, json")

	rootCmd.AddCommand(listCmd)
}

func listFilter(cmd *cobra.Command) (model.Filter, error) {
	var f model.Filter
	if st, _ := cmd.Flags().GetString("status"); st != "" && st != "all" {
		s, err := model.ParseStatus(st)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	if rt, _ := cmd.Flags().GetString("type"); rt != "" {
		t, err := model.ParseReportType(rt)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	if p, _ := cmd.Flags().GetBool("pending-photos"); p {
		f.PhotoState = model.PhotoPending
	}
	return f, nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	filter, err := listFilter(cmd)
	if err != nil {
		return err
	}

	s, cleanup, err := resolveStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer cleanup()

	orch := orchestrator.New(s, cfg)
	reports, err := orch.List(ctx, filter)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if out, _ := cmd.Flags().GetString("output"); out == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	export.WriteReportTable(w, reports, cfg.Location())
	return nil
}
