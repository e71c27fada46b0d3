package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/sarmiento-reclamos/reclamos/internal/metrics"
	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
	"github.com/sarmiento-reclamos/reclamos/internal/store"
)

// Snapshot is one applied reload of the live board.
type Snapshot struct {
	Seq      uint64
	Reports  []model.Report
	Summary  stats.Summary
	LoadedAt time.Time
}

// LiveBoard keeps an aggregated view of the store current. Every change
// notification triggers a full reload; reloads may overlap, and a result is
// only applied when no newer reload has been applied before it.
type LiveBoard struct {
	store     store.Store
	engine    *stats.Engine
	filter    model.Filter
	collector *metrics.StatsCollector
	log       log.Interface

	mu      sync.Mutex
	issued  uint64
	current Snapshot

	notifyMu  sync.Mutex
	notified  uint64
	listeners []func(Snapshot)
}

// NewLiveBoard creates a board over s. The collector may be nil.
func NewLiveBoard(s store.Store, e *stats.Engine, f model.Filter, c *metrics.StatsCollector, l log.Interface) *LiveBoard {
	if l == nil {
		l = log.Log
	}
	return &LiveBoard{store: s, engine: e, filter: f, collector: c, log: l}
}

// OnReload registers fn to receive every applied snapshot, in order.
func (b *LiveBoard) OnReload(fn func(Snapshot)) {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Current returns the latest applied snapshot.
func (b *LiveBoard) Current() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Reload fetches the full report set and re-aggregates it. It reports
// whether the result was applied; a reload overtaken by a newer one is
// dropped.
func (b *LiveBoard) Reload(ctx context.Context) (bool, error) {
	b.mu.Lock()
	b.issued++
	seq := b.issued
	b.mu.Unlock()

	reports, err := b.store.List(ctx, b.filter)
	if err != nil {
		metrics.ReloadsTotal.WithLabelValues(metrics.ResultError).Inc()
		return false, fmt.Errorf("reload %d: %w", seq, err)
	}
	snap := Snapshot{
		Seq:      seq,
		Reports:  reports,
		Summary:  b.engine.Aggregate(reports),
		LoadedAt: time.Now(),
	}

	b.mu.Lock()
	if seq < b.current.Seq {
		b.mu.Unlock()
		metrics.ReloadsTotal.WithLabelValues(metrics.ResultStale).Inc()
		b.log.WithField("seq", seq).WithField("applied", b.current.Seq).Debug("dropping stale reload")
		return false, nil
	}
	b.current = snap
	b.mu.Unlock()
	metrics.ReloadsTotal.WithLabelValues(metrics.ResultOK).Inc()

	// An older reload that got past the check above must not publish after
	// a newer one.
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	if snap.Seq <= b.notified {
		return true, nil
	}
	b.notified = snap.Seq
	if b.collector != nil {
		b.collector.Update(snap.Summary)
	}
	metrics.LastReloadSeconds.Set(float64(snap.LoadedAt.Unix()))
	for _, fn := range b.listeners {
		fn(snap)
	}
	return true, nil
}

// Run loads the board, then reloads on every change until ctx is done or the
// subscription ends.
func (b *LiveBoard) Run(ctx context.Context) error {
	changes, err := b.store.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to changes: %w", err)
	}
	if _, err := b.Reload(ctx); err != nil {
		b.log.WithError(err).Error("initial load failed")
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			b.log.WithField("op", string(c.Op)).WithField("id", c.ID).Debug("change received")
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := b.Reload(ctx); err != nil {
					b.log.WithError(err).Warn("reload failed")
				}
			}()
		}
	}
}
