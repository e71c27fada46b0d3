package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sarmiento-reclamos/reclamos/internal/config"
)

var (
	cfgFile  string
	cfg      config.Config
	verbose  bool
	snapshot string
)

var rootCmd = &cobra.Command{
	Use:   "reclamos",
	Short: "Citizen report board for Sarmiento, San Juan",
	Long: `reclamos records and tracks citizen reports about water, power, roads,
waste and anonymous complaints in Sarmiento, San Juan.

It stores reports in Postgres (or a local JSON snapshot), attaches photos
through object storage, aggregates dashboard statistics and exports them
as CSV, PDF, JSON, GeoJSON or Prometheus text.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: reclamos.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&snapshot, "snapshot", "", "use a local JSON snapshot file instead of Postgres")
	rootCmd.PersistentFlags().String("dsn", "", "Postgres connection string")

	_ = viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("dsn"))
}

func loadConfig() error {
	// .env.local wins over .env; neither overrides the real environment.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	// Start with defaults
	cfg = config.Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("reclamos")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.reclamos")
	}

	// Environment variable overrides
	viper.SetEnvPrefix("RECLAMOS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("store.dsn", "RECLAMOS_STORE_DSN", "DATABASE_URL")
	_ = viper.BindEnv("storage.cloudinary_url", "RECLAMOS_STORAGE_CLOUDINARY_URL", "CLOUDINARY_URL")
	_ = viper.BindEnv("geocode.google_api_key", "RECLAMOS_GEOCODE_GOOGLE_API_KEY", "MAPS_CREDENTIALS")
	_ = viper.BindEnv("events.url", "RECLAMOS_EVENTS_URL", "AMQP_URL")

	// Read config file (not an error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	if snapshot != "" {
		cfg.Store.Backend = "snapshot"
		cfg.Store.Snapshot = snapshot
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging()
	return nil
}

func setupLogging() {
	switch cfg.Log.Format {
	case "json":
		log.SetHandler(jsonhandler.New(os.Stderr))
	default:
		log.SetHandler(cli.New(os.Stderr))
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}
