package export

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/sarmiento-reclamos/reclamos/internal/metrics"
	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

// PromExporter renders the summary in the Prometheus text exposition
// format, suitable for a node_exporter textfile collector.
type PromExporter struct {
	w io.Writer
}

func (e *PromExporter) Export(ctx context.Context, _ []model.Report, s stats.Summary, _ Meta) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewStatsCollector(s)); err != nil {
		return fmt.Errorf("registering summary collector: %w", err)
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering summary metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(e.w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
