package config

import "time"

// ServerConfig contains server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0,lte=65535"`
}

// GTFSRTConfig contains the live vehicle feed configuration
type GTFSRTConfig struct {
	FeedURL         string `yaml:"feedURL" validate:"omitempty,url"`
	APIKey          string `yaml:"apiKey"`
	RoutePrefix     string `yaml:"routePrefix"`
	CacheTTLSeconds int    `yaml:"cacheTTLSeconds" validate:"gt=0"`
	TimeoutMS       int    `yaml:"timeoutMS" validate:"gt=0"`
	PollIntervalMS  int    `yaml:"pollIntervalMS" validate:"gt=0"`
}

// WeatherConfig contains the observation feed configuration
type WeatherConfig struct {
	URL       string `yaml:"url" validate:"omitempty,url"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gt=0"`
}

// GTFSConfig contains GTFS static archive configuration
type GTFSConfig struct {
	StaticPath string `yaml:"staticPath"`
	GraphPath  string `yaml:"graphPath"`
}

// NATSConfig contains the movement publisher configuration
type NATSConfig struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Subject string `yaml:"subject" validate:"required"`
}

// MetricsConfig contains the Prometheus listener configuration
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	File  string `yaml:"file"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server  ServerConfig  `yaml:"server" validate:"required"`
	GTFSRT  GTFSRTConfig  `yaml:"gtfsrt"`
	Weather WeatherConfig `yaml:"weather"`
	GTFS    GTFSConfig    `yaml:"gtfs"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

func (c *AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.GTFSRT.CacheTTLSeconds) * time.Second
}

func (c *AppConfig) FeedTimeout() time.Duration {
	return time.Duration(c.GTFSRT.TimeoutMS) * time.Millisecond
}

func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.GTFSRT.PollIntervalMS) * time.Millisecond
}

func (c *AppConfig) WeatherTimeout() time.Duration {
	return time.Duration(c.Weather.TimeoutMS) * time.Millisecond
}
