package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sarmiento-reclamos/reclamos/internal/config"
	"github.com/sarmiento-reclamos/reclamos/internal/export"
	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
	"github.com/sarmiento-reclamos/reclamos/internal/store"
)

// Orchestrator coordinates store reads, aggregation and export for the
// admin commands.
type Orchestrator struct {
	Store  store.Store
	Engine *stats.Engine
	Config config.Config
	Writer io.Writer
	now    func() time.Time
}

// New creates an orchestrator with the given dependencies.
func New(s store.Store, cfg config.Config) *Orchestrator {
	engine := stats.NewEngine(cfg.Location())
	engine.ZoneLimit = cfg.Report.ZoneLimit
	return &Orchestrator{
		Store:  s,
		Engine: engine,
		Config: cfg,
		Writer: os.Stdout,
		now:    time.Now,
	}
}

// List returns the reports matching f, newest first.
func (o *Orchestrator) List(ctx context.Context, f model.Filter) ([]model.Report, error) {
	reports, err := o.Store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("loading reports: %w", err)
	}
	return reports, nil
}

// Stats loads every report and aggregates it.
func (o *Orchestrator) Stats(ctx context.Context) ([]model.Report, stats.Summary, error) {
	reports, err := o.List(ctx, model.Filter{})
	if err != nil {
		return nil, stats.Summary{}, err
	}
	return reports, o.Engine.Aggregate(reports), nil
}

func (o *Orchestrator) meta() export.Meta {
	return export.Meta{
		Title:       o.Config.Report.Title,
		GeneratedAt: o.now(),
		Location:    o.Config.Location(),
	}
}

// Report writes the current aggregation to o.Writer in format.
func (o *Orchestrator) Report(ctx context.Context, format string) error {
	reports, summary, err := o.Stats(ctx)
	if err != nil {
		return err
	}
	exp, err := export.New(format, o.Writer)
	if err != nil {
		return err
	}
	if err := exp.Export(ctx, reports, summary, o.meta()); err != nil {
		return fmt.Errorf("generating report: %w", err)
	}
	return nil
}

// ExportFile writes an export of every report into dir and returns its path.
func (o *Orchestrator) ExportFile(ctx context.Context, format, dir string) (string, error) {
	reports, summary, err := o.Stats(ctx)
	if err != nil {
		return "", err
	}
	meta := o.meta()
	name := export.FileName(format, meta.GeneratedAt.In(meta.Location))
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	exp, err := export.New(format, f)
	if err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}

	_, _ = fmt.Fprintf(o.Writer, "Exportando %d reclamos (%s)...\n", len(reports), format)
	if err := exp.Export(ctx, reports, summary, meta); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("exporting %s: %w", format, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing export file: %w", err)
	}
	_, _ = fmt.Fprintf(o.Writer, "Archivo generado: %s\n", path)
	return path, nil
}

// Resolve marks a report resolved and returns the fresh aggregation.
// Resolving an already resolved report succeeds.
func (o *Orchestrator) Resolve(ctx context.Context, id string) (stats.Summary, error) {
	return o.setStatus(ctx, id, model.StatusResolved)
}

// Reactivate moves a resolved report back to active.
func (o *Orchestrator) Reactivate(ctx context.Context, id string) (stats.Summary, error) {
	return o.setStatus(ctx, id, model.StatusActive)
}

func (o *Orchestrator) setStatus(ctx context.Context, id string, s model.Status) (stats.Summary, error) {
	if err := o.Store.Update(ctx, id, model.SetStatus(s)); err != nil {
		return stats.Summary{}, fmt.Errorf("setting %s to %s: %w", id, s, err)
	}
	_, summary, err := o.Stats(ctx)
	return summary, err
}

// Delete removes a report permanently and returns the fresh aggregation.
func (o *Orchestrator) Delete(ctx context.Context, id string) (stats.Summary, error) {
	if err := o.Store.Delete(ctx, id); err != nil {
		return stats.Summary{}, fmt.Errorf("deleting %s: %w", id, err)
	}
	_, summary, err := o.Stats(ctx)
	return summary, err
}
