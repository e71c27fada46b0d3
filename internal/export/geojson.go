package export

import (
	"context"
	"fmt"
	"io"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

// GeoJSONExporter writes reports as a FeatureCollection of points, one
// feature per report in input order.
type GeoJSONExporter struct {
	w io.Writer
}

func (e *GeoJSONExporter) Export(ctx context.Context, reports []model.Report, _ stats.Summary, meta Meta) error {
	fc := FeatureCollection(reports, meta.location())
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding geojson: %w", err)
	}
	if _, err := e.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing geojson: %w", err)
	}
	return nil
}

// FeatureCollection converts reports into GeoJSON point features.
func FeatureCollection(reports []model.Report, loc *time.Location) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range reports {
		f := geojson.NewPointFeature([]float64{r.Position.Lng, r.Position.Lat})
		f.ID = r.ID
		f.SetProperty("id", r.ID)
		f.SetProperty("type", string(r.Type))
		f.SetProperty("type_label", r.Type.Label())
		f.SetProperty("status", string(r.Status))
		f.SetProperty("address", r.Address)
		f.SetProperty("zone", stats.ZoneOf(r.Address))
		f.SetProperty("description", r.Description)
		f.SetProperty("reported_by", r.ReportedBy)
		f.SetProperty("created_at", FormatTimestamp(r.CreatedAt, loc))
		f.SetProperty("photos", len(r.Photos))
		fc.AddFeature(f)
	}
	return fc
}
