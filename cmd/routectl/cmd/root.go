package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"freightgraph/internal/app"
	"freightgraph/internal/config"
	"freightgraph/internal/geo"
	"freightgraph/internal/logging"
	"freightgraph/internal/model"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "routectl",
	Short: "Explore sea routes and build multimodal freight graphs",
	Long: `routectl runs the freight graph engine from the command line.

It explores multi-hop sea routes between ports, builds road/air/sea graphs
between two coordinates, finds shortest paths in saved graphs and manages
the schedule cache.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// openApp loads the configuration and wires the engine. Callers close it.
func openApp() (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logLevel, cfg.Environment)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}

// parseDate reads YYYY-MM-DD, defaulting to today in UTC.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// parseLatLng reads "lat,lng".
func parseLatLng(s string) (model.GeoPoint, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return model.GeoPoint{}, fmt.Errorf("coordinate %q: want lat,lng", s)
	}
	var p model.GeoPoint
	var err error
	if p.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return model.GeoPoint{}, fmt.Errorf("coordinate %q: latitude: %w", s, err)
	}
	if p.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
		return model.GeoPoint{}, fmt.Errorf("coordinate %q: longitude: %w", s, err)
	}
	if !geo.ValidCoord(p.Lat, p.Lng) {
		return model.GeoPoint{}, fmt.Errorf("coordinate %q: out of range", s)
	}
	return p, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
