package cmd

import (
	"context"
	"fmt"

	"github.com/apex/log"

	"github.com/sarmiento-reclamos/reclamos/internal/cache"
	"github.com/sarmiento-reclamos/reclamos/internal/collab"
	"github.com/sarmiento-reclamos/reclamos/internal/events"
	"github.com/sarmiento-reclamos/reclamos/internal/intake"
	"github.com/sarmiento-reclamos/reclamos/internal/objstore"
	"github.com/sarmiento-reclamos/reclamos/internal/store"
)

// resolveStore opens the configured store, wrapped with AMQP change events
// when an events URL is set. The returned cleanup closes everything.
func resolveStore() (store.Store, func(), error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Backend {
	case "snapshot":
		s, err = store.OpenSnapshot(cfg.Store.Snapshot)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.Store.Snapshot).Debug("using snapshot store")
	default:
		if cfg.Store.DSN == "" {
			return nil, nil, fmt.Errorf("database DSN not set; use --dsn, DATABASE_URL or --snapshot")
		}
		s, err = store.OpenPostgres(cfg.Store.DSN, log.Log)
		if err != nil {
			return nil, nil, err
		}
	}

	if cfg.Events.URL == "" {
		return s, func() { _ = s.Close() }, nil
	}

	conn, err := events.Dial(cfg.Events.URL)
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	pubCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		_ = s.Close()
		return nil, nil, err
	}
	pub, err := events.NewPublisher(pubCh, cfg.Events.Exchange)
	if err != nil {
		_ = conn.Close()
		_ = s.Close()
		return nil, nil, err
	}
	subCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		_ = s.Close()
		return nil, nil, err
	}
	sub, err := events.NewSubscriber(subCh, cfg.Events.Exchange, log.Log)
	if err != nil {
		_ = conn.Close()
		_ = s.Close()
		return nil, nil, err
	}

	ps := events.NewPublishingStore(s, pub, sub, log.Log)
	return ps, func() {
		_ = ps.Close()
		_ = conn.Close()
	}, nil
}

// resolveUploader builds the configured photo storage, or nil when none is.
func resolveUploader(ctx context.Context) (objstore.Uploader, error) {
	switch cfg.Storage.Provider {
	case "s3":
		return objstore.NewS3Uploader(ctx, objstore.S3Options{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
	case "cloudinary":
		return objstore.NewCloudinaryUploader(cfg.Storage.CloudinaryURL, cfg.Storage.Folder)
	default:
		return nil, nil
	}
}

// resolveGeocoder builds the configured reverse geocoder behind the file
// cache, or nil when geocoding is disabled.
func resolveGeocoder() (collab.ReverseGeocoder, error) {
	var g collab.ReverseGeocoder
	switch cfg.Geocode.Provider {
	case "none":
		return nil, nil
	case "google":
		gm, err := collab.NewGoogleMaps(cfg.Geocode.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		g = gm
	default:
		g = collab.NewNominatim(cfg.Geocode.NominatimURL)
	}
	return collab.NewCachedGeocoder(g, cache.NewFileCache(cfg.CacheDir), cfg.Geocode.CacheTTL), nil
}

func newWeatherClient() *collab.WeatherClient {
	w := collab.NewWeatherClient()
	w.BaseURL = cfg.Weather.URL
	w.Latitude = cfg.Weather.Latitude
	w.Longitude = cfg.Weather.Longitude
	w.Timezone = cfg.Weather.Timezone
	return w
}

func newOutageSource() collab.OutageSource {
	if cfg.Outages.FeedURL == "" {
		return collab.NoDataSource{}
	}
	return collab.NewFeedSource(cfg.Outages.FeedURL)
}

// newIntake wires the submission service over s.
func newIntake(ctx context.Context, s store.Store) (*intake.Service, error) {
	uploader, err := resolveUploader(ctx)
	if err != nil {
		return nil, fmt.Errorf("configuring photo storage: %w", err)
	}
	geocoder, err := resolveGeocoder()
	if err != nil {
		log.WithError(err).Warn("reverse geocoding disabled")
	}
	return intake.NewService(s, uploader, cache.NewFileCache(cfg.SpoolDir()), intake.Options{
		MaxAttempts: cfg.Intake.MaxAttempts,
		Geocoder:    geocoder,
		Log:         log.Log,
	}), nil
}
