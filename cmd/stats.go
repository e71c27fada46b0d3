package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarmiento-reclamos/reclamos/internal/orchestrator"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print dashboard statistics",
	Long: `Loads every report and prints the aggregated dashboard: totals by status
and type, the last 7 and 30 days, the top zones, the weekday and hourly
distribution and photo counts.`,
	RunE: runStats,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reports to a dated file",
	Long: `Writes every report to reclamos-YYYY-MM-DD.<ext> in the output directory.
CSV files start with a byte order mark and quote every field; PDF files hold
the summary tables across as many pages as needed.`,
	RunE: runExport,
}

func init() {
	f := statsCmd.Flags()
	f.String("output", "", "output format: table, json, prom, csv, geojson, pdf")
	f.String("output-file", "", "write output to file")

	e := exportCmd.Flags()
	e.String("format", "csv", "export format: csv, pdf, json, geojson, prom")
	e.String("output-dir", "", "directory for the export file")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if f, _ := cmd.Flags().GetString("output"); cmd.Flags().Changed("output") {
		cfg.Output.Format = f
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, cleanup, err := resolveStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer cleanup()

	orch := orchestrator.New(s, cfg)
	orch.Writer = cmd.OutOrStdout()
	if outFile, _ := cmd.Flags().GetString("output-file"); outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		orch.Writer = f
	}
	return orch.Report(ctx, cfg.Output.Format)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	format, _ := cmd.Flags().GetString("format")
	dir := cfg.Output.Dir
	if d, _ := cmd.Flags().GetString("output-dir"); d != "" {
		dir = d
	}

	s, cleanup, err := resolveStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer cleanup()

	orch := orchestrator.New(s, cfg)
	orch.Writer = cmd.OutOrStdout()
	_, err = orch.ExportFile(ctx, format, dir)
	return err
}
