package cmd

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/sarmiento-reclamos/reclamos/internal/store"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Retry photo uploads of reports left pending",
	Long: `Finds reports whose photos failed to upload and retries them from the local
spool. A report is marked abandoned once it reaches the configured number of
attempts or its staged photos are gone.`,
	RunE: runReconcile,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema and change-notification trigger",
	RunE:  runMigrate,
}

func init() {
	reconcileCmd.Flags().Int("max-attempts", 0, "upload attempts before a report is abandoned")

	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if n, _ := cmd.Flags().GetInt("max-attempts"); cmd.Flags().Changed("max-attempts") {
		cfg.Intake.MaxAttempts = n
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, cleanup, err := resolveStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer cleanup()

	svc, err := newIntake(ctx, s)
	if err != nil {
		return err
	}
	rep, err := svc.Reconcile(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Pendientes revisados: %d\n", rep.Checked)
	fmt.Fprintf(w, "  Adjuntados:  %d\n", rep.Attached)
	fmt.Fprintf(w, "  Reintentar:  %d\n", rep.Retried)
	fmt.Fprintf(w, "  Abandonados: %d\n", rep.Abandoned)
	for _, id := range rep.Failed {
		fmt.Fprintf(w, "  Error al actualizar %s\n", id)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if cfg.Store.DSN == "" {
		return fmt.Errorf("database DSN not set; use --dsn or DATABASE_URL")
	}
	s, err := store.OpenPostgres(cfg.Store.DSN, log.Log)
	if err != nil {
		return err
	}
	defer s.Close()

	done, err := s.Migrate(ctx)
	for _, name := range done {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
	}
	return err
}
