package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tidbyt.dev/trainsignal"
	"tidbyt.dev/trainsignal/config"
	"tidbyt.dev/trainsignal/downloader"
	"tidbyt.dev/trainsignal/feedcrypt"
	"tidbyt.dev/trainsignal/model"
	"tidbyt.dev/trainsignal/parse"
)

var rootCmd = &cobra.Command{
	Use:               "trainsignal",
	Short:             "Amtrak arrival and departure signal",
	Long:              "Watches the Amtrak train feed and announces trains at a station",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configPath  string
	stationCode string

	cfg config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&stationCode, "station", "s", "", "Station code (overrides config and STATION_CODE)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	env := config.Environ()
	if stationCode != "" {
		env["STATION_CODE"] = stationCode
	}

	loaded, err := config.Load(configPath, env)
	if err != nil {
		return err
	}
	cfg = loaded

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	return nil
}

func LoadStations() (model.StationTable, error) {
	stations, err := parse.LoadStations(cfg.StationsFile)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.StationsFile).Int("stations", len(stations)).Msg("Loaded stations")
	return stations, nil
}

// Station table for display only. Missing names fall back to codes.
func LoadStationsOrEmpty() model.StationTable {
	stations, err := LoadStations()
	if err != nil {
		log.Warn().Err(err).Msg("Station names unavailable")
		return model.StationTable{}
	}
	return stations
}

// Feed client. With a capture file, the response is saved to disk and
// replayed until cacheTTL passes (forever if cacheTTL is zero).
func NewClient(captureFile string, cacheTTL time.Duration) *feedcrypt.Client {
	client := feedcrypt.NewClient(cfg.FeedURL)

	if captureFile != "" {
		client.Downloader = downloader.NewCaptureFile(captureFile)
		client.Cache = true
		client.CacheTTL = cacheTTL
	}

	return client
}

// Fetches the feed once, returning a runloop holding the extracted
// records.
func LoadFeed(
	ctx context.Context,
	stations model.StationTable,
	source trainsignal.FeedSource,
) (*trainsignal.Runloop, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	loop := trainsignal.NewRunloop(cfg.StationCode, stations, source, announceNothing)
	loop.Location = loc

	err = loop.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	return loop, nil
}

var announceNothing = trainsignal.AnnouncerFuncs{}
