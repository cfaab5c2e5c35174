package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	// Devices often ship without a zoneinfo database
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultStationCode  = "ALX"
	DefaultStationsFile = "./stations.json"
	DefaultFeedURL      = "https://maps.amtrak.com/services/MapDataService/trains/getTrainsData"
	DefaultFeedTimezone = "Local"
	DefaultTickInterval = 10 * time.Second
	DefaultPollInterval = 60 * time.Second
	DefaultAudioDir     = "./audio"
)

type JournalConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory sqlite postgres"`
	DSN     string `yaml:"dsn" validate:"required_if=Backend postgres"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// Config is the full signal configuration.
type Config struct {
	StationCode  string        `yaml:"station" validate:"required,alphanum"`
	StationsFile string        `yaml:"stations_file" validate:"required"`
	FeedURL      string        `yaml:"feed_url" validate:"required,url"`
	FeedTimezone string        `yaml:"feed_timezone" validate:"required"`
	TickInterval time.Duration `yaml:"tick_interval" validate:"gt=0"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`

	ForceArrival   bool `yaml:"force_arrival"`
	ForceDeparture bool `yaml:"force_departure"`

	// Passed on to the hook command's environment
	AudioDir    string `yaml:"audio_dir"`
	HookCommand string `yaml:"hook_command"`

	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

func Default() Config {
	return Config{
		StationCode:  DefaultStationCode,
		StationsFile: DefaultStationsFile,
		FeedURL:      DefaultFeedURL,
		FeedTimezone: DefaultFeedTimezone,
		TickInterval: DefaultTickInterval,
		PollInterval: DefaultPollInterval,
		AudioDir:     DefaultAudioDir,
		Journal:      JournalConfig{Backend: "memory"},
		Log:          LogConfig{Level: "info", Format: "console"},
	}
}

// Loads configuration. Defaults are overridden by the YAML file at
// path (skipped if path is empty), which is in turn overridden by
// env.
func Load(path string, env map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg, env)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config, env map[string]string) {
	strs := map[string]*string{
		"STATION_CODE":    &cfg.StationCode,
		"STATIONS_FILE":   &cfg.StationsFile,
		"FEED_URL":        &cfg.FeedURL,
		"FEED_TIMEZONE":   &cfg.FeedTimezone,
		"AUDIO_DIR":       &cfg.AudioDir,
		"HOOK_COMMAND":    &cfg.HookCommand,
		"JOURNAL_BACKEND": &cfg.Journal.Backend,
		"JOURNAL_DSN":     &cfg.Journal.DSN,
		"LOG_LEVEL":       &cfg.Log.Level,
		"LOG_FORMAT":      &cfg.Log.Format,
	}
	for key, dst := range strs {
		if value, found := env[key]; found && value != "" {
			*dst = value
		}
	}

	if value, found := env["FORCE_ARRIVAL"]; found {
		cfg.ForceArrival = truthy(value)
	}
	if value, found := env["FORCE_DEPARTURE"]; found {
		cfg.ForceDeparture = truthy(value)
	}
}

// Any non-empty value enables a flag, except explicit negatives.
func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location feed timestamps are interpreted in. "Local" is the
// device's own zone, which is the station's zone when the device sits
// at the station.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.FeedTimezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.FeedTimezone, err)
	}
	return loc, nil
}

// Environment as a map.
func Environ() map[string]string {
	env := map[string]string{}
	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)
		if len(pair) == 2 {
			env[pair[0]] = pair[1]
		}
	}
	return env
}
