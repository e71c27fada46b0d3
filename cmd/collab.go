package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/sarmiento-reclamos/reclamos/internal/collab"
	"github.com/sarmiento-reclamos/reclamos/internal/model"
)

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Show the current weather in Sarmiento",
	RunE: func(cmd *cobra.Command, args []string) error {
		board := collab.NewBoard()
		w, err := newWeatherClient().Current(context.Background())
		if err != nil {
			log.WithError(err).Debug("weather unavailable")
		}
		board.SetWeather(w, err)
		fmt.Fprintln(cmd.OutOrStdout(), board.WeatherLine())
		return nil
	},
}

var outagesCmd = &cobra.Command{
	Use:   "outages",
	Short: "Show scheduled power outages",
	RunE: func(cmd *cobra.Command, args []string) error {
		board := collab.NewBoard()
		r, err := newOutageSource().Poll(context.Background())
		if err != nil {
			log.WithError(err).Debug("outages unavailable")
		}
		board.SetOutages(r, err)

		w := cmd.OutOrStdout()
		now := time.Now()
		fmt.Fprintln(w, board.OutageLine(now))
		for _, win := range r.Upcoming(now) {
			fmt.Fprintf(w, "  %s  %s - %s  %s\n",
				win.Zone,
				win.Start.In(cfg.Location()).Format("02/01 15:04"),
				win.End.In(cfg.Location()).Format("15:04"),
				win.Reason,
			)
		}
		return nil
	},
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Reverse geocode a position to a street address",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		pos := model.Position{Lat: lat, Lng: lng}
		if err := pos.Validate(); err != nil {
			return err
		}

		g, err := resolveGeocoder()
		if err != nil {
			return err
		}
		addr := collab.BestEffortAddress(context.Background(), g, pos, log.Log)
		if addr == "" {
			addr = collab.Unavailable
		}
		fmt.Fprintln(cmd.OutOrStdout(), addr)
		return nil
	},
}

func init() {
	geocodeCmd.Flags().Float64("lat", collab.DefaultLatitude, "latitude")
	geocodeCmd.Flags().Float64("lng", collab.DefaultLongitude, "longitude")

	rootCmd.AddCommand(weatherCmd)
	rootCmd.AddCommand(outagesCmd)
	rootCmd.AddCommand(geocodeCmd)
}
