package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Auction   AuctionConfig   `yaml:"auction"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Stream    StreamConfig    `yaml:"stream"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// AuctionConfig carries the engine's construction parameters. Prices are in
// hundredths of a numeraire unit, durations in seconds.
type AuctionConfig struct {
	ID                string `yaml:"id"`
	DurationSeconds   int64  `yaml:"duration_seconds"`
	FloorPrice        int64  `yaml:"floor_price"`
	Granularity       int32  `yaml:"granularity"`
	MinBidSize        int64  `yaml:"min_bid_size"`
	Allocation        int64  `yaml:"allocation"`
	IncentiveShareBps int64  `yaml:"incentive_share_bps"`
	ClaimWindow       int64  `yaml:"claim_window_seconds"`
	Orientation       string `yaml:"orientation"` // selling_asset | selling_numeraire
	Owner             string `yaml:"owner"`
	Migrator          string `yaml:"migrator"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	ListenAddr     string  `yaml:"listen_addr"`
	RateLimit      float64 `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst      int     `yaml:"rate_burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// StorageConfig controls the Postgres event log. An empty DSN disables
// persistence.
type StorageConfig struct {
	DSN           string `yaml:"dsn"`
	BatchSize     int    `yaml:"batch_size"`
	FlushMillis   int    `yaml:"flush_millis"`
	PersistBuffer int    `yaml:"persist_buffer"`
}

// StreamConfig controls the NATS JetStream publisher. An empty URL disables
// publishing.
type StreamConfig struct {
	URL           string `yaml:"url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
	PublishBuffer int    `yaml:"publish_buffer"`
}

// TelemetryConfig controls the metrics/health listener.
type TelemetryConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LogConfig controls log verbosity.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Load reads the YAML file at path, loads .env if present, applies
// environment overrides and defaults, and validates. Env values win over
// YAML values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the daemon cannot start with. The engine
// re-validates the auction parameters on construction; this catches the
// rest.
func (c *Config) Validate() error {
	if c.Auction.ID == "" {
		return fmt.Errorf("config: auction.id required")
	}
	if c.Auction.Orientation != "selling_asset" && c.Auction.Orientation != "selling_numeraire" {
		return fmt.Errorf("config: auction.orientation %q must be selling_asset or selling_numeraire", c.Auction.Orientation)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: server.rate_limit must not be negative")
	}
	if c.Storage.DSN != "" && c.Storage.BatchSize <= 0 {
		return fmt.Errorf("config: storage.batch_size must be positive")
	}
	if c.Stream.URL != "" && c.Stream.StreamName == "" {
		return fmt.Errorf("config: stream.stream_name required when stream.url is set")
	}
	return nil
}

// FlushInterval returns the persistence flush timeout as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Storage.FlushMillis) * time.Millisecond
}

// RequestTimeout returns the HTTP request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUCTION_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("AUCTION_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("AUCTION_POSTGRES_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("AUCTION_NATS_URL"); v != "" {
		cfg.Stream.URL = v
	}
	if v := os.Getenv("AUCTION_TELEMETRY_ADDR"); v != "" {
		cfg.Telemetry.ListenAddr = v
	}
	if v := os.Getenv("AUCTION_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimit = f
		}
	}
}

func setDefaults(cfg *Config) {
	if cfg.Auction.Orientation == "" {
		cfg.Auction.Orientation = "selling_asset"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = 20
	}
	if cfg.Server.TimeoutSeconds <= 0 {
		cfg.Server.TimeoutSeconds = 10
	}
	if cfg.Storage.BatchSize <= 0 {
		cfg.Storage.BatchSize = 256
	}
	if cfg.Storage.FlushMillis <= 0 {
		cfg.Storage.FlushMillis = 200
	}
	if cfg.Storage.PersistBuffer <= 0 {
		cfg.Storage.PersistBuffer = 1024
	}
	if cfg.Stream.StreamName == "" {
		cfg.Stream.StreamName = "AUCTION_EVENTS"
	}
	if cfg.Stream.SubjectPrefix == "" {
		cfg.Stream.SubjectPrefix = "auction.events"
	}
	if cfg.Stream.PublishBuffer <= 0 {
		cfg.Stream.PublishBuffer = 1024
	}
	if cfg.Telemetry.ListenAddr == "" {
		cfg.Telemetry.ListenAddr = ":9090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
