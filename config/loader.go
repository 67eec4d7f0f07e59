package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when no explicit path is given.
var DefaultPaths = []string{"config.yml", "./config/config.yml"}

// ErrNoFeedURL is returned by RequireFeed when GTFS_RT_URL is unset.
var ErrNoFeedURL = errors.New("GTFS_RT_URL must be set")

// Defaults returns the configuration used before file and environment overrides.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{Port: 8000},
		GTFSRT: GTFSRTConfig{
			CacheTTLSeconds: 60,
			TimeoutMS:       15000,
			PollIntervalMS:  60000,
		},
		Weather: WeatherConfig{
			URL:       "https://prodapi.metweb.ie/observations/dublin",
			TimeoutMS: 10000,
		},
		NATS: NATSConfig{Subject: "smartbus.movements"},
	}
}

// Load builds the configuration from defaults, the yaml file and the
// environment, then validates it. An explicit path must exist; the default
// paths are optional.
func Load(path string) (*AppConfig, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := Defaults()
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// RequireFeed reports whether the live feed is configured.
func (c *AppConfig) RequireFeed() error {
	if c.GTFSRT.FeedURL == "" {
		return ErrNoFeedURL
	}
	return nil
}

func readConfigFile(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return data, nil
	}
	for _, p := range DefaultPaths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", p, err)
		}
	}
	return nil, nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.GTFSRT.FeedURL, "GTFS_RT_URL")
	setString(&cfg.GTFSRT.APIKey, "API_KEY")
	setString(&cfg.GTFSRT.RoutePrefix, "ROUTE_PREFIX")
	setString(&cfg.Weather.URL, "WEATHER_URL")
	setString(&cfg.GTFS.StaticPath, "GTFS_STATIC_PATH")
	setString(&cfg.GTFS.GraphPath, "GRAPH_PATH")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Subject, "NATS_SUBJECT")
	setString(&cfg.Metrics.Addr, "METRICS_ADDR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.File, "LOG_FILE")

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.GTFSRT.CacheTTLSeconds, "CACHE_TTL_SECONDS"},
		{&cfg.GTFSRT.TimeoutMS, "FEED_TIMEOUT_MS"},
		{&cfg.GTFSRT.PollIntervalMS, "POLL_INTERVAL_MS"},
		{&cfg.Server.Port, "PORT"},
		{&cfg.Weather.TimeoutMS, "WEATHER_TIMEOUT_MS"},
	}
	for _, i := range ints {
		if err := setPositiveInt(i.dst, i.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func setPositiveInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = n
	return nil
}
