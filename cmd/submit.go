package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sarmiento-reclamos/reclamos/internal/intake"
	"github.com/sarmiento-reclamos/reclamos/internal/model"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new citizen report",
	Long: `Validates and stores a new report. Photos are uploaded after the record is
created; if an upload fails the report is kept and the photos are retried by
"reclamos reconcile" or the watch loop.

When --address is empty the address is filled by reverse geocoding the
position.`,
	RunE: runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.Float64("lat", 0, "latitude of the issue")
	f.Float64("lng", 0, "longitude of the issue")
	f.String("address", "", "street address (reverse geocoded when empty)")
	f.String("description", "", "free-text description")
	f.String("name", "", "reporter name (anonymous when empty)")
	f.String("type", string(model.TypeWater), "report type: agua, luz, calles, residuos, denuncia_anonima")
	f.StringSlice("photo", nil, "photo file to attach (repeatable, max 5)")
	f.String("output", "table", "output format: table, json")

	_ = submitCmd.MarkFlagRequired("lat")
	_ = submitCmd.MarkFlagRequired("lng")

	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	lat, _ := cmd.Flags().GetFloat64("lat")
	lng, _ := cmd.Flags().GetFloat64("lng")
	address, _ := cmd.Flags().GetString("address")
	description, _ := cmd.Flags().GetString("description")
	name, _ := cmd.Flags().GetString("name")
	rawType, _ := cmd.Flags().GetString("type")
	paths, _ := cmd.Flags().GetStringSlice("photo")
	output, _ := cmd.Flags().GetString("output")

	rt, err := model.ParseReportType(rawType)
	if err != nil {
		return err
	}
	photos, err := readPhotos(paths)
	if err != nil {
		return err
	}

	s, cleanup, err := resolveStore()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer cleanup()

	svc, err := newIntake(ctx, s)
	if err != nil {
		return err
	}

	res, err := svc.Submit(ctx, model.Draft{
		Position:    model.Position{Lat: lat, Lng: lng},
		Address:     address,
		Description: description,
		ReportedBy:  name,
		Type:        rt,
	}, photos)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "Reclamo registrado: %s\n", res.ID)
	fmt.Fprintf(w, "  Dirección: %s\n", res.Report.Address)
	if len(photos) > 0 {
		fmt.Fprintf(w, "  Fotos:     %d de %d adjuntas\n", res.PhotosAttached, len(photos))
	}
	if res.Warning != "" {
		fmt.Fprintf(w, "\n%s\n", res.Warning)
	}
	return nil
}

func readPhotos(paths []string) ([]intake.Photo, error) {
	if len(paths) > model.MaxPhotos {
		return nil, &model.ValidationError{
			Field:  "photos",
			Reason: fmt.Sprintf("at most %d photos, got %d", model.MaxPhotos, len(paths)),
		}
	}
	photos := make([]intake.Photo, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading photo: %w", err)
		}
		ct := mime.TypeByExtension(filepath.Ext(p))
		if ct == "" {
			ct = "image/jpeg"
		}
		photos = append(photos, intake.Photo{Name: filepath.Base(p), ContentType: ct, Data: data})
	}
	return photos, nil
}
