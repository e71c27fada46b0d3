package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

const (
	Namespace = "reclamos"
)

var (
	reportsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, "", "reports"),
		"Reports by status.",
		[]string{"status"}, nil,
	)
	reportsByTypeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, "", "reports_by_type"),
		"Reports by type and status.",
		[]string{"type", "status"}, nil,
	)
	reportsWindowDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, "", "reports_window"),
		"Reports created inside a time window.",
		[]string{"window"}, nil,
	)
	withPhotosDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, "", "reports_with_photos"),
		"Reports with at least one photo.",
		nil, nil,
	)
	photosDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, "", "photos_total"),
		"Photos attached across all reports.",
		nil, nil,
	)
	zoneDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, "", "zone_reports"),
		"Reports in the top ranked zones.",
		[]string{"zone"}, nil,
	)
	hourDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, "", "reports_by_hour"),
		"Reports by local hour of creation.",
		[]string{"hour"}, nil,
	)
)

// StatsCollector exposes the latest aggregation as gauges. It is safe to
// update while being scraped.
type StatsCollector struct {
	mu      sync.RWMutex
	summary stats.Summary
	set     bool
}

// NewStatsCollector creates a collector that reports s until the next Update.
func NewStatsCollector(s stats.Summary) *StatsCollector {
	return &StatsCollector{summary: s, set: true}
}

// Update replaces the summary exposed on the next scrape.
func (c *StatsCollector) Update(s stats.Summary) {
	c.mu.Lock()
	c.summary = s
	c.set = true
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- reportsDesc
	ch <- reportsByTypeDesc
	ch <- reportsWindowDesc
	ch <- withPhotosDesc
	ch <- photosDesc
	ch <- zoneDesc
	ch <- hourDesc
}

// Collect implements prometheus.Collector. Nothing is emitted before the
// first summary arrives.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	s, ok := c.summary, c.set
	c.mu.RUnlock()
	if !ok {
		return
	}

	gauge := func(desc *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(v), labels...)
	}

	gauge(reportsDesc, s.Active, "active")
	gauge(reportsDesc, s.Resolved, "resolved")

	for _, tc := range s.ByType {
		gauge(reportsByTypeDesc, tc.Active, string(tc.Type), "active")
		gauge(reportsByTypeDesc, tc.Resolved, string(tc.Type), "resolved")
	}

	gauge(reportsWindowDesc, s.Today, "today")
	gauge(reportsWindowDesc, s.Last7Days, "7d")
	gauge(reportsWindowDesc, s.Last30Days, "30d")

	gauge(withPhotosDesc, s.WithPhotos)
	gauge(photosDesc, s.TotalPhotos)

	for _, z := range s.Zones {
		gauge(zoneDesc, z.Total, z.Name)
	}
	for h, n := range s.Hours {
		gauge(hourDesc, n, strconv.Itoa(h))
	}
}
