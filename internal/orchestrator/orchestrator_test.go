package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sarmiento-reclamos/reclamos/internal/config"
	"github.com/sarmiento-reclamos/reclamos/internal/metrics"
	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
	"github.com/sarmiento-reclamos/reclamos/internal/store"
)

var quiet = &log.Logger{Handler: discard.Default, Level: log.InfoLevel}

func seed(t *testing.T, s store.Store, types ...model.ReportType) []string {
	t.Helper()
	var ids []string
	for i, rt := range types {
		r, err := s.Create(context.Background(), model.Draft{
			Position: model.Position{Lat: -31.97, Lng: -68.42},
			Address:  []string{"Laprida 10, Media Agua", "Mendoza 5, Cochagual"}[i%2],
			Type:     rt,
		}.Report(false))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, r.ID)
	}
	return ids
}

func newOrchestrator(s store.Store) (*Orchestrator, *bytes.Buffer) {
	cfg := config.Default()
	o := New(s, cfg)
	o.now = func() time.Time { return time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC) }
	buf := &bytes.Buffer{}
	o.Writer = buf
	return o, buf
}

func TestOrchestrator_ResolveReactivate(t *testing.T) {
	s := store.NewMemoryStore()
	ids := seed(t, s, model.TypeWater, model.TypePower, model.TypeWater)
	o, _ := newOrchestrator(s)
	ctx := context.Background()

	summary, err := o.Resolve(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if summary.Active != 2 || summary.Resolved != 1 {
		t.Errorf("after resolve: %d active, %d resolved", summary.Active, summary.Resolved)
	}

	again, err := o.Resolve(ctx, ids[0])
	if err != nil {
		t.Fatalf("resolving twice should succeed: %v", err)
	}
	if again.Resolved != 1 {
		t.Errorf("idempotent resolve changed counts: %+v", again)
	}

	summary, err = o.Reactivate(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if summary.Active != 3 || summary.Resolved != 0 {
		t.Errorf("after reactivate: %d active, %d resolved", summary.Active, summary.Resolved)
	}
	if summary.Active+summary.Resolved != summary.Total {
		t.Error("active + resolved must equal total")
	}
}

func TestOrchestrator_Delete(t *testing.T) {
	s := store.NewMemoryStore()
	ids := seed(t, s, model.TypeRoads, model.TypeWaste)
	o, _ := newOrchestrator(s)
	ctx := context.Background()

	summary, err := o.Delete(ctx, ids[1])
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != 1 || summary.ForType(model.TypeWaste).Total != 0 {
		t.Errorf("after delete: %+v", summary)
	}
	if _, err := o.Delete(ctx, ids[1]); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := o.Resolve(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOrchestrator_Report(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, model.TypeWater, model.TypeWater, model.TypePower)
	o, buf := newOrchestrator(s)

	if err := o.Report(context.Background(), "table"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Sarmiento Reclamos") {
		t.Errorf("table output missing title:\n%s", buf.String())
	}

	buf.Reset()
	if err := o.Report(context.Background(), "prom"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `reclamos_reports{status="active"} 3`) {
		t.Errorf("prom output:\n%s", buf.String())
	}

	if err := o.Report(context.Background(), "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestOrchestrator_ExportFile(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, model.TypeWater, model.TypeAnonymous)
	o, buf := newOrchestrator(s)
	dir := filepath.Join(t.TempDir(), "out")

	path, err := o.ExportFile(context.Background(), "csv", dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "reclamos-2024-05-10.csv" {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\uFEFF")) {
		t.Error("csv export should start with a byte order mark")
	}
	if got := strings.Count(string(data), "\n"); got != 3 {
		t.Errorf("expected header + 2 rows, got %d lines", got)
	}
	if !strings.Contains(buf.String(), "Exportando 2 reclamos") {
		t.Errorf("progress output: %q", buf.String())
	}

	if _, err := o.ExportFile(context.Background(), "docx", dir); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := os.Stat(filepath.Join(dir, "reclamos-2024-05-10.docx")); !os.IsNotExist(err) {
		t.Error("failed export should not leave a file behind")
	}
}

// gatedStore blocks each List call until the test releases it.
type gatedStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	gates   []chan struct{}
	entered chan int
}

func newGatedStore() *gatedStore {
	return &gatedStore{MemoryStore: store.NewMemoryStore(), entered: make(chan int, 4)}
}

func (g *gatedStore) List(ctx context.Context, f model.Filter) ([]model.Report, error) {
	g.mu.Lock()
	i := len(g.gates)
	gate := make(chan struct{})
	g.gates = append(g.gates, gate)
	g.mu.Unlock()

	g.entered <- i
	<-gate
	return g.MemoryStore.List(ctx, f)
}

func (g *gatedStore) release(i int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gates[i])
}

func TestLiveBoard_DropsStaleReload(t *testing.T) {
	gs := newGatedStore()
	seed(t, gs.MemoryStore, model.TypeWater)
	board := NewLiveBoard(gs, stats.NewEngine(time.UTC), model.Filter{}, &metrics.StatsCollector{}, quiet)

	var mu sync.Mutex
	var seen []uint64
	board.OnReload(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.Seq)
		mu.Unlock()
	})

	ctx := context.Background()
	type outcome struct {
		applied bool
		err     error
	}
	first := make(chan outcome, 1)
	go func() {
		ok, err := board.Reload(ctx)
		first <- outcome{ok, err}
	}()
	<-gs.entered

	seed(t, gs.MemoryStore, model.TypePower)
	second := make(chan outcome, 1)
	go func() {
		ok, err := board.Reload(ctx)
		second <- outcome{ok, err}
	}()
	<-gs.entered

	gs.release(1)
	if got := <-second; !got.applied || got.err != nil {
		t.Fatalf("newer reload should apply: %+v", got)
	}
	gs.release(0)
	if got := <-first; got.applied || got.err != nil {
		t.Fatalf("older reload should be dropped: %+v", got)
	}

	cur := board.Current()
	if cur.Seq != 2 || cur.Summary.Total != 2 {
		t.Errorf("current = seq %d, total %d", cur.Seq, cur.Summary.Total)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != 2 {
		t.Errorf("listeners saw %v", seen)
	}
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) List(context.Context, model.Filter) ([]model.Report, error) {
	return nil, errors.New("connection refused")
}

func TestLiveBoard_ReloadErrorKeepsPrevious(t *testing.T) {
	board := NewLiveBoard(failingStore{store.NewMemoryStore()}, stats.NewEngine(time.UTC), model.Filter{}, nil, quiet)
	if _, err := board.Reload(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if board.Current().Seq != 0 {
		t.Error("failed reload must not be applied")
	}
}

func TestLiveBoard_RunReloadsOnChange(t *testing.T) {
	s := store.NewMemoryStore()
	collector := &metrics.StatsCollector{}
	board := NewLiveBoard(s, stats.NewEngine(time.UTC), model.Filter{}, collector, quiet)

	snaps := make(chan Snapshot, 8)
	board.OnReload(func(sn Snapshot) { snaps <- sn })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- board.Run(ctx) }()

	select {
	case sn := <-snaps:
		if sn.Summary.Total != 0 {
			t.Errorf("initial total = %d", sn.Summary.Total)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial load")
	}

	seed(t, s, model.TypeWater)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case sn := <-snaps:
			if sn.Summary.Total == 1 {
				cancel()
				if err := <-done; err != nil {
					t.Errorf("Run: %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("board never reflected the new report")
		}
	}
}

func TestLiveBoard_OlderReloadDoesNotPublishAfterNewer(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, model.TypeWater)
	collector := &metrics.StatsCollector{}
	board := NewLiveBoard(s, stats.NewEngine(time.UTC), model.Filter{}, collector, quiet)

	var calls int
	board.OnReload(func(Snapshot) { calls++ })

	// A newer reload already published; the next one to arrive is older.
	board.notifyMu.Lock()
	board.notified = 5
	board.notifyMu.Unlock()

	if _, err := board.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("listeners called %d times for an older reload", calls)
	}
	if n := testutil.CollectAndCount(collector); n != 0 {
		t.Errorf("collector updated by an older reload: %d metrics", n)
	}

	board.notifyMu.Lock()
	board.notified = 0
	board.notifyMu.Unlock()
	if _, err := board.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 1 || testutil.CollectAndCount(collector) == 0 {
		t.Errorf("newest reload should publish: calls=%d", calls)
	}
}

// cancelingStore cancels the caller's context once the reports are loaded.
type cancelingStore struct {
	*store.MemoryStore
	cancel context.CancelFunc
}

func (c cancelingStore) List(ctx context.Context, f model.Filter) ([]model.Report, error) {
	reports, err := c.MemoryStore.List(ctx, f)
	c.cancel()
	return reports, err
}

func TestOrchestrator_ExportFileRemovesPartialFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mem := store.NewMemoryStore()
	seed(t, mem, model.TypeWater)
	o, _ := newOrchestrator(cancelingStore{MemoryStore: mem, cancel: cancel})
	dir := t.TempDir()

	if _, err := o.ExportFile(ctx, "csv", dir); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "reclamos-2024-05-10.csv")); !os.IsNotExist(err) {
		t.Error("failed export should not leave a partial file")
	}
}
