package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

// JSONExporter outputs the summary and the report set as JSON.
type JSONExporter struct {
	w io.Writer
}

type jsonOutput struct {
	Meta    Meta           `json:"meta"`
	Summary stats.Summary  `json:"summary"`
	Reports []model.Report `json:"reports"`
}

func (e *JSONExporter) Export(ctx context.Context, reports []model.Report, summary stats.Summary, meta Meta) error {
	if reports == nil {
		reports = []model.Report{}
	}
	output := jsonOutput{
		Meta:    meta,
		Summary: summary,
		Reports: reports,
	}

	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
