package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

// byteOrderMark lets spreadsheet tools detect UTF-8.
const byteOrderMark = "\uFEFF"

var csvHeader = []string{"ID", "Tipo", "Dirección", "Descripción", "Reportado por", "Estado", "Fecha", "Fotos"}

// CSVExporter writes one row per report, every field quoted.
type CSVExporter struct {
	w io.Writer
}

func (e *CSVExporter) Export(ctx context.Context, reports []model.Report, _ stats.Summary, meta Meta) error {
	bw := bufio.NewWriter(e.w)
	if _, err := bw.WriteString(byteOrderMark); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	writeCSVRecord(bw, csvHeader)

	loc := meta.location()
	for i, r := range reports {
		if i%256 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		writeCSVRecord(bw, []string{
			r.ID,
			r.Type.Label(),
			r.Address,
			r.Description,
			r.ReportedBy,
			r.Status.Label(),
			FormatTimestamp(r.CreatedAt, loc),
			strconv.Itoa(len(r.Photos)),
		})
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

func writeCSVRecord(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}
