package config

import (
	"path/filepath"
	"testing"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestDefault_Sarmiento(t *testing.T) {
	cfg := Default()
	if cfg.Weather.Latitude != -31.9742 || cfg.Weather.Longitude != -68.4231 {
		t.Errorf("weather point = %v,%v", cfg.Weather.Latitude, cfg.Weather.Longitude)
	}
	if cfg.Report.Timezone != "America/Argentina/San_Juan" {
		t.Errorf("timezone = %q", cfg.Report.Timezone)
	}
	if cfg.Report.ZoneLimit != 10 {
		t.Errorf("zone limit = %d", cfg.Report.ZoneLimit)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Store.Backend = "mysql" }},
		{"snapshot path", func(c *Config) { c.Store.Backend = "snapshot"; c.Store.Snapshot = "" }},
		{"storage provider", func(c *Config) { c.Storage.Provider = "ftp" }},
		{"s3 bucket", func(c *Config) { c.Storage.Provider = "s3"; c.Storage.Bucket = "" }},
		{"geocoder", func(c *Config) { c.Geocode.Provider = "bing" }},
		{"attempts", func(c *Config) { c.Intake.MaxAttempts = 0 }},
		{"timezone", func(c *Config) { c.Report.Timezone = "Mars/Olympus" }},
		{"format", func(c *Config) { c.Output.Format = "xml" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "logfmt" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_ZoneLimit_FixesZero(t *testing.T) {
	cfg := Default()
	cfg.Report.ZoneLimit = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Report.ZoneLimit != 10 {
		t.Errorf("expected zone limit to be fixed to 10, got %d", cfg.Report.ZoneLimit)
	}
}

func TestLocation(t *testing.T) {
	cfg := Default()
	if cfg.Location().String() != "America/Argentina/San_Juan" {
		t.Errorf("Location = %v", cfg.Location())
	}
	cfg.Report.Timezone = "nowhere"
	if cfg.Location().String() != "UTC" {
		t.Errorf("fallback = %v", cfg.Location())
	}
}

func TestSpoolDir(t *testing.T) {
	cfg := Default()
	cfg.CacheDir = "/var/cache/reclamos"
	if got := cfg.SpoolDir(); got != filepath.Join("/var/cache/reclamos", "spool") {
		t.Errorf("SpoolDir = %q", got)
	}
	cfg.Intake.SpoolDir = "/data/spool"
	if got := cfg.SpoolDir(); got != "/data/spool" {
		t.Errorf("SpoolDir = %q", got)
	}
}
