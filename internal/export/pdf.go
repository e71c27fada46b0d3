package export

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

const (
	pdfMargin    = 15.0
	pdfRowHeight = 7.0
	pdfTableGap  = 10.0
)

// PDFExporter writes a paginated statistics document: a title block followed
// by the general, per-type and zone tables.
type PDFExporter struct {
	w io.Writer

	// uncompressed leaves page streams readable for tests.
	uncompressed bool
}

func (e *PDFExporter) Export(ctx context.Context, _ []model.Report, s stats.Summary, meta Meta) error {
	doc := newPDFDoc(meta, !e.uncompressed)

	doc.titleBlock(meta)
	for _, t := range summaryTables(s) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		doc.table(t)
	}

	if err := doc.f.Output(e.w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

// pdfTable is one titled table. Widths are fractions of the printable width.
type pdfTable struct {
	title  string
	header []string
	widths []float64
	aligns []string
	rows   [][]string
}

func summaryTables(s stats.Summary) []pdfTable {
	general := pdfTable{
		title:  "Estadísticas generales",
		header: []string{"Métrica", "Valor"},
		widths: []float64{0.7, 0.3},
		aligns: []string{"L", "R"},
		rows: [][]string{
			{"Total", strconv.Itoa(s.Total)},
			{"Activos", strconv.Itoa(s.Active)},
			{"Resueltos", strconv.Itoa(s.Resolved)},
			{"Hoy", strconv.Itoa(s.Today)},
			{"Últimos 7 días", strconv.Itoa(s.Last7Days)},
			{"Últimos 30 días", strconv.Itoa(s.Last30Days)},
			{"Con fotos", strconv.Itoa(s.WithPhotos)},
			{"Total de fotos", strconv.Itoa(s.TotalPhotos)},
		},
	}

	byType := pdfTable{
		title:  "Por tipo",
		header: []string{"Tipo", "Total", "Activos", "Resueltos"},
		widths: []float64{0.4, 0.2, 0.2, 0.2},
		aligns: []string{"L", "R", "R", "R"},
	}
	for _, tc := range s.ByType {
		byType.rows = append(byType.rows, []string{
			tc.Label, strconv.Itoa(tc.Total), strconv.Itoa(tc.Active), strconv.Itoa(tc.Resolved),
		})
	}

	zones := pdfTable{
		title:  "Zonas con más reclamos",
		header: []string{"#", "Zona", "Total", "Activos"},
		widths: []float64{0.1, 0.5, 0.2, 0.2},
		aligns: []string{"C", "L", "R", "R"},
	}
	for i, z := range s.Zones {
		zones.rows = append(zones.rows, []string{
			strconv.Itoa(i + 1), z.Name, strconv.Itoa(z.Total), strconv.Itoa(z.Active),
		})
	}

	return []pdfTable{general, byType, zones}
}

type pdfDoc struct {
	f      *fpdf.Fpdf
	tr     func(string) string
	width  float64 // printable width
	bottom float64 // lowest y a row may end at
}

func newPDFDoc(meta Meta, compress bool) *pdfDoc {
	f := fpdf.New("P", "mm", "A4", "")
	f.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	f.SetAutoPageBreak(false, pdfMargin)
	f.SetCompression(compress)
	f.SetCatalogSort(true)
	f.SetCreationDate(meta.GeneratedAt)
	f.SetModificationDate(meta.GeneratedAt)
	f.SetCreator("reclamos", true)
	f.SetTitle(meta.Title, true)
	f.AddPage()

	pageW, pageH := f.GetPageSize()
	left, _, right, bottom := f.GetMargins()
	return &pdfDoc{
		f:      f,
		tr:     f.UnicodeTranslatorFromDescriptor(""),
		width:  pageW - left - right,
		bottom: pageH - bottom,
	}
}

func (d *pdfDoc) titleBlock(meta Meta) {
	title := meta.Title
	if title == "" {
		title = "Reclamos"
	}
	d.f.SetFont("Helvetica", "B", 16)
	d.f.CellFormat(0, 10, d.tr(title), "", 1, "C", false, 0, "")
	d.f.SetFont("Helvetica", "", 10)
	d.f.CellFormat(0, 6, d.tr("Generado: "+FormatTimestamp(meta.GeneratedAt, meta.location())), "", 1, "C", false, 0, "")
	d.f.SetY(d.f.GetY() + pdfTableGap)
}

// table draws t starting at the current y. A row that would cross the bottom
// margin moves to a new page, where the header is drawn again. The cursor is
// left one gap below the last row.
func (d *pdfDoc) table(t pdfTable) {
	// Keep the title with the header and at least one row.
	if d.f.GetY()+8+2*pdfRowHeight > d.bottom {
		d.f.AddPage()
	}
	d.f.SetFont("Helvetica", "B", 12)
	d.f.CellFormat(0, 8, d.tr(t.title), "", 1, "L", false, 0, "")
	d.header(t)

	d.f.SetFont("Helvetica", "", 10)
	for i, row := range t.rows {
		if d.f.GetY()+pdfRowHeight > d.bottom {
			d.f.AddPage()
			d.header(t)
			d.f.SetFont("Helvetica", "", 10)
		}
		fill := i%2 == 1
		d.f.SetFillColor(245, 245, 245)
		for c, cell := range row {
			d.f.CellFormat(t.widths[c]*d.width, pdfRowHeight, d.tr(cell), "1", 0, t.aligns[c], fill, 0, "")
		}
		d.f.Ln(-1)
	}
	d.f.SetY(d.f.GetY() + pdfTableGap)
}

func (d *pdfDoc) header(t pdfTable) {
	d.f.SetFont("Helvetica", "B", 10)
	d.f.SetFillColor(41, 98, 155)
	d.f.SetTextColor(255, 255, 255)
	for c, h := range t.header {
		d.f.CellFormat(t.widths[c]*d.width, pdfRowHeight, d.tr(h), "1", 0, "C", true, 0, "")
	}
	d.f.Ln(-1)
	d.f.SetTextColor(0, 0, 0)
}
