package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // report timezone must load on hosts without zoneinfo

	"github.com/apex/log"

	"github.com/sarmiento-reclamos/reclamos/internal/collab"
	"github.com/sarmiento-reclamos/reclamos/internal/events"
	"github.com/sarmiento-reclamos/reclamos/internal/export"
	"github.com/sarmiento-reclamos/reclamos/internal/intake"
	"github.com/sarmiento-reclamos/reclamos/internal/stats"
)

// Config is the top-level configuration for reclamos.
type Config struct {
	Store    StoreConfig   `mapstructure:"store" yaml:"store"`
	Storage  StorageConfig `mapstructure:"storage" yaml:"storage"`
	Events   EventsConfig  `mapstructure:"events" yaml:"events"`
	Intake   IntakeConfig  `mapstructure:"intake" yaml:"intake"`
	Geocode  GeocodeConfig `mapstructure:"geocode" yaml:"geocode"`
	Weather  WeatherConfig `mapstructure:"weather" yaml:"weather"`
	Outages  OutageConfig  `mapstructure:"outages" yaml:"outages"`
	Report   ReportConfig  `mapstructure:"report" yaml:"report"`
	Output   OutputConfig  `mapstructure:"output" yaml:"output"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Log      LogConfig     `mapstructure:"log" yaml:"log"`
	CacheDir string        `mapstructure:"cache_dir" yaml:"cache_dir"`
}

// StoreConfig selects the report store. Snapshot is a local JSON file,
// handy for offline work and tests.
type StoreConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend"` // postgres or snapshot
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Snapshot string `mapstructure:"snapshot" yaml:"snapshot"`
}

type StorageConfig struct {
	Provider        string `mapstructure:"provider" yaml:"provider"` // none, s3 or cloudinary
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	PublicBaseURL   string `mapstructure:"public_base_url" yaml:"public_base_url"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	CloudinaryURL   string `mapstructure:"cloudinary_url" yaml:"cloudinary_url"`
	Folder          string `mapstructure:"folder" yaml:"folder"`
}

// EventsConfig enables AMQP change events when URL is set.
type EventsConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Exchange string `mapstructure:"exchange" yaml:"exchange"`
}

type IntakeConfig struct {
	MaxAttempts       int    `mapstructure:"max_attempts" yaml:"max_attempts"`
	SpoolDir          string `mapstructure:"spool_dir" yaml:"spool_dir"` // empty = <cache_dir>/spool
	ReconcileSchedule string `mapstructure:"reconcile_schedule" yaml:"reconcile_schedule"`
}

type GeocodeConfig struct {
	Provider     string        `mapstructure:"provider" yaml:"provider"` // nominatim, google or none
	NominatimURL string        `mapstructure:"nominatim_url" yaml:"nominatim_url"`
	GoogleAPIKey string        `mapstructure:"google_api_key" yaml:"google_api_key"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

type WeatherConfig struct {
	URL       string  `mapstructure:"url" yaml:"url"`
	Latitude  float64 `mapstructure:"latitude" yaml:"latitude"`
	Longitude float64 `mapstructure:"longitude" yaml:"longitude"`
	Timezone  string  `mapstructure:"timezone" yaml:"timezone"`
	Schedule  string  `mapstructure:"schedule" yaml:"schedule"`
}

// OutageConfig points at a JSON outage feed. Without one, outages report
// no data.
type OutageConfig struct {
	FeedURL  string `mapstructure:"feed_url" yaml:"feed_url"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

type ReportConfig struct {
	Title     string `mapstructure:"title" yaml:"title"`
	Timezone  string `mapstructure:"timezone" yaml:"timezone"`
	ZoneLimit int    `mapstructure:"zone_limit" yaml:"zone_limit"`
}

type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // cli or json
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend:  "postgres",
			Snapshot: "reclamos.json",
		},
		Storage: StorageConfig{
			Provider: "none",
			Region:   detectRegion(),
			Folder:   "reclamos",
		},
		Events: EventsConfig{
			Exchange: events.DefaultExchange,
		},
		Intake: IntakeConfig{
			MaxAttempts:       intake.DefaultMaxAttempts,
			ReconcileSchedule: collab.ReconcileSchedule,
		},
		Geocode: GeocodeConfig{
			Provider:     "nominatim",
			NominatimURL: collab.DefaultNominatimURL,
			CacheTTL:     30 * 24 * time.Hour,
		},
		Weather: WeatherConfig{
			URL:       collab.DefaultWeatherURL,
			Latitude:  collab.DefaultLatitude,
			Longitude: collab.DefaultLongitude,
			Timezone:  collab.DefaultTimezone,
			Schedule:  collab.WeatherSchedule,
		},
		Outages: OutageConfig{
			Schedule: collab.OutageSchedule,
		},
		Report: ReportConfig{
			Title:     "Sarmiento Reclamos",
			Timezone:  collab.DefaultTimezone,
			ZoneLimit: stats.DefaultZoneLimit,
		},
		Output: OutputConfig{
			Format: "table",
			Dir:    ".",
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "cli",
		},
		CacheDir: defaultCacheDir(),
	}
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	validBackends := map[string]bool{"postgres": true, "snapshot": true}
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("store backend must be postgres or snapshot, got %q", c.Store.Backend)
	}
	if c.Store.Backend == "snapshot" && c.Store.Snapshot == "" {
		return fmt.Errorf("store snapshot path is required for the snapshot backend")
	}
	validProviders := map[string]bool{"none": true, "s3": true, "cloudinary": true}
	if !validProviders[c.Storage.Provider] {
		return fmt.Errorf("storage provider must be none, s3, or cloudinary, got %q", c.Storage.Provider)
	}
	if c.Storage.Provider == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required for the s3 provider")
	}
	validGeocoders := map[string]bool{"none": true, "nominatim": true, "google": true}
	if !validGeocoders[c.Geocode.Provider] {
		return fmt.Errorf("geocode provider must be none, nominatim, or google, got %q", c.Geocode.Provider)
	}
	if c.Intake.MaxAttempts <= 0 {
		return fmt.Errorf("intake max_attempts must be positive, got %d", c.Intake.MaxAttempts)
	}
	if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		return fmt.Errorf("report timezone %q: %w", c.Report.Timezone, err)
	}
	validFormats := map[string]bool{}
	for _, f := range export.Formats {
		validFormats[f] = true
	}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("output format must be one of %v, got %q", export.Formats, c.Output.Format)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Log.Format != "cli" && c.Log.Format != "json" {
		return fmt.Errorf("log format must be cli or json, got %q", c.Log.Format)
	}
	if c.Report.ZoneLimit <= 0 {
		c.Report.ZoneLimit = stats.DefaultZoneLimit
	}
	return nil
}

// Location returns the report timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SpoolDir returns where pending photos are staged.
func (c Config) SpoolDir() string {
	if c.Intake.SpoolDir != "" {
		return c.Intake.SpoolDir
	}
	return filepath.Join(c.CacheDir, "spool")
}

// detectRegion checks environment variables for the AWS region.
func detectRegion() string {
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r
	}
	if r := os.Getenv("AWS_DEFAULT_REGION"); r != "" {
		return r
	}
	return "us-east-1"
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "reclamos")
	}
	return filepath.Join(os.TempDir(), "reclamos")
}
