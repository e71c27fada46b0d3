package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

var weekdayLabels = [7]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

// TableExporter outputs the statistics dashboard as terminal text.
type TableExporter struct {
	w io.Writer
}

func (e *TableExporter) Export(ctx context.Context, reports []model.Report, s stats.Summary, meta Meta) error {
	w := e.w
	title := meta.Title
	if title == "" {
		title = "Reclamos"
	}

	// Header
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "%s\n", title)
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(w, "Generado:    %s\n", FormatTimestamp(meta.GeneratedAt, meta.location()))
	fmt.Fprintf(w, "Total:       %d (%d activos, %d resueltos)\n", s.Total, s.Active, s.Resolved)
	fmt.Fprintf(w, "Hoy:         %d\n", s.Today)
	fmt.Fprintf(w, "7 días:      %d\n", s.Last7Days)
	fmt.Fprintf(w, "30 días:     %d\n", s.Last30Days)
	fmt.Fprintf(w, "Fotos:       %d reclamos, %d fotos\n", s.WithPhotos, s.TotalPhotos)
	if s.Undated > 0 {
		fmt.Fprintf(w, "Sin fecha:   %d\n", s.Undated)
	}
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 60))

	if s.Total == 0 {
		fmt.Fprintf(w, "No hay reclamos.\n\n")
		return nil
	}

	fmt.Fprintf(w, "%-20s %6s %7s %9s\n", "Tipo", "Total", "Activos", "Resueltos")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 45))
	for _, tc := range s.ByType {
		fmt.Fprintf(w, "%-20s %6d %7d %9d\n", tc.Label, tc.Total, tc.Active, tc.Resolved)
	}

	fmt.Fprintf(w, "\n%-4s %-30s %6s %7s\n", "#", "Zona", "Total", "Activos")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 50))
	for i, z := range s.Zones {
		fmt.Fprintf(w, "%-4d %-30s %6d %7d\n", i+1, truncate(z.Name, 30), z.Total, z.Active)
	}

	fmt.Fprintf(w, "\nPor día:  ")
	for d, dc := range s.Weekdays {
		fmt.Fprintf(w, " %s %d/%d", weekdayLabels[d], dc.Total, dc.Active)
	}
	fmt.Fprintf(w, "\n")
	if s.PeakHourCount > 0 {
		fmt.Fprintf(w, "Hora pico: %02d:00 (%d reclamos)\n", s.PeakHour, s.PeakHourCount)
	}

	fmt.Fprintf(w, "\n")
	return nil
}

// WriteReportTable prints a listing of reports, one line each.
func WriteReportTable(w io.Writer, reports []model.Report, loc *time.Location) {
	if len(reports) == 0 {
		fmt.Fprintf(w, "No hay reclamos.\n")
		return
	}
	fmt.Fprintf(w, "%-36s %-16s %-9s %-20s %-5s %s\n", "ID", "Tipo", "Estado", "Fecha", "Fotos", "Dirección")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 120))
	for _, r := range reports {
		photos := fmt.Sprintf("%d", len(r.Photos))
		if r.PhotoState == model.PhotoPending {
			photos += "*"
		}
		fmt.Fprintf(w, "%-36s %-16s %-9s %-20s %-5s %s\n",
			r.ID,
			r.Type.Label(),
			r.Status.Label(),
			FormatTimestamp(r.CreatedAt, loc),
			photos,
			truncate(r.Address, 40),
		)
	}
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 120))
	fmt.Fprintf(w, "%d reclamos\n", len(reports))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
