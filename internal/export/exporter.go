package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

// Exporter writes a report set and its summary to an output destination.
type Exporter interface {
	Export(ctx context.Context, reports []model.Report, summary stats.Summary, meta Meta) error
}

// Meta contains contextual metadata for an export.
type Meta struct {
	Title       string         `json:"title"`
	GeneratedAt time.Time      `json:"generated_at"`
	Location    *time.Location `json:"-"`
}

func (m Meta) location() *time.Location {
	if m.Location == nil {
		return time.Local
	}
	return m.Location
}

// Formats lists the supported export formats.
var Formats = []string{"csv", "pdf", "json", "geojson", "prom", "table"}

// New creates an exporter for the given format writing to w.
func New(format string, w io.Writer) (Exporter, error) {
	switch format {
	case "csv":
		return &CSVExporter{w: w}, nil
	case "pdf":
		return &PDFExporter{w: w}, nil
	case "json":
		return &JSONExporter{w: w}, nil
	case "geojson":
		return &GeoJSONExporter{w: w}, nil
	case "prom":
		return &PromExporter{w: w}, nil
	case "table", "":
		return &TableExporter{w: w}, nil
	}
	return nil, fmt.Errorf("unknown export format %q (want one of %v)", format, Formats)
}

// FileName is the download name of an export produced on date.
func FileName(format string, date time.Time) string {
	ext := format
	if format == "table" {
		ext = "txt"
	}
	return fmt.Sprintf("reclamos-%s.%s", date.Format("2006-01-02"), ext)
}

const timestampLayout = "02/01/2006, 15:04:05"

// FormatTimestamp renders t in loc the way listings and exports show it.
// Missing times render as "-".
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(timestampLayout)
}
