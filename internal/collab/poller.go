package collab

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/robfig/cron/v3"

	"github.com/sarmiento-reclamos/reclamos/internal/metrics"
)

// Default polling schedules.
const (
	WeatherSchedule   = "@every 30m"
	OutageSchedule    = "@every 1h"
	ReconcileSchedule = "@every 5m"
)

// Job is an extra task scheduled alongside the collaborator polls.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Poller refreshes a Board on a cron schedule.
type Poller struct {
	Board   *Board
	Weather WeatherProvider
	Outages OutageSource
	Jobs    []Job
	Log     log.Interface

	WeatherSchedule string
	OutageSchedule  string
}

// RefreshWeather polls the weather provider once.
func (p *Poller) RefreshWeather(ctx context.Context) {
	if p.Weather == nil {
		return
	}
	w, err := p.Weather.Current(ctx)
	p.Board.SetWeather(w, err)
	p.record("weather", err)
}

// RefreshOutages polls the outage source once.
func (p *Poller) RefreshOutages(ctx context.Context) {
	if p.Outages == nil {
		return
	}
	r, err := p.Outages.Poll(ctx)
	p.Board.SetOutages(r, err)
	p.record("outages", err)
}

func (p *Poller) record(source string, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
		p.logger().WithError(err).WithField("source", source).Warn("collaborator unavailable")
	}
	metrics.CollabPollsTotal.WithLabelValues(source, result).Inc()
}

func (p *Poller) logger() log.Interface {
	if p.Log == nil {
		return log.Log
	}
	return p.Log
}

// Run refreshes everything once, then keeps polling until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.RefreshWeather(ctx)
	p.RefreshOutages(ctx)

	c := cron.New()
	if _, err := c.AddFunc(orDefault(p.WeatherSchedule, WeatherSchedule), func() { p.RefreshWeather(ctx) }); err != nil {
		return fmt.Errorf("scheduling weather: %w", err)
	}
	if _, err := c.AddFunc(orDefault(p.OutageSchedule, OutageSchedule), func() { p.RefreshOutages(ctx) }); err != nil {
		return fmt.Errorf("scheduling outages: %w", err)
	}
	for _, j := range p.Jobs {
		j := j
		if _, err := c.AddFunc(j.Schedule, func() {
			if err := j.Run(ctx); err != nil {
				p.logger().WithError(err).WithField("job", j.Name).Error("scheduled job failed")
			}
		}); err != nil {
			return fmt.Errorf("scheduling %s: %w", j.Name, err)
		}
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
