package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sarmiento-reclamos/reclamos/internal/collab"
	"github.com/sarmiento-reclamos/reclamos/internal/metrics"
	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/orchestrator"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the dashboard live and serve it as Prometheus metrics",
	Long: `Subscribes to store changes and reloads the full report set on every
insert, update or delete. The aggregated dashboard is exposed on /metrics,
weather and scheduled outages are polled in the background and pending
photo uploads are retried on a schedule.`,
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.String("listen", "", "address for the metrics endpoint")
	f.Bool("no-collab", false, "disable weather and outage polling")
	f.Bool("no-reconcile", false, "disable scheduled photo reconciliation")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if l, _ := cmd.Flags().GetString("listen"); l != "" {
		cfg.Metrics.Listen = l
	}

	s, cleanup, err := resolveStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer cleanup()

	engine := stats.NewEngine(cfg.Location())
	engine.ZoneLimit = cfg.Report.ZoneLimit
	collector := &metrics.StatsCollector{}
	metrics.Register(collector)

	live := orchestrator.NewLiveBoard(s, engine, model.Filter{}, collector, log.Log)
	board := collab.NewBoard()
	live.OnReload(func(sn orchestrator.Snapshot) {
		log.WithField("seq", sn.Seq).
			WithField("total", sn.Summary.Total).
			WithField("active", sn.Summary.Active).
			WithField("resolved", sn.Summary.Resolved).
			Info("dashboard reloaded")
		log.Info(board.WeatherLine())
		log.Info(board.OutageLine(time.Now()))
	})

	errc := make(chan error, 3)

	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: metricsMux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.WithField("addr", cfg.Metrics.Listen).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	var jobs []collab.Job
	if off, _ := cmd.Flags().GetBool("no-reconcile"); !off {
		svc, err := newIntake(ctx, s)
		if err != nil {
			return err
		}
		jobs = append(jobs, collab.Job{
			Name:     "reconcile",
			Schedule: cfg.Intake.ReconcileSchedule,
			Run: func(ctx context.Context) error {
				rep, err := svc.Reconcile(ctx)
				if rep.Checked > 0 {
					log.WithField("attached", rep.Attached).
						WithField("retried", rep.Retried).
						WithField("abandoned", rep.Abandoned).
						Info("photo reconciliation")
				}
				return err
			},
		})
	}

	poller := &collab.Poller{
		Board:           board,
		Jobs:            jobs,
		Log:             log.Log,
		WeatherSchedule: cfg.Weather.Schedule,
		OutageSchedule:  cfg.Outages.Schedule,
	}
	if off, _ := cmd.Flags().GetBool("no-collab"); !off {
		poller.Weather = newWeatherClient()
		poller.Outages = newOutageSource()
	}
	go func() {
		if err := poller.Run(ctx); err != nil {
			errc <- fmt.Errorf("poller: %w", err)
		}
	}()

	go func() {
		errc <- live.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("stopped")
	return runErr
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
