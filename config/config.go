package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Durations  DurationConfig   `yaml:"durations"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// DurationConfig holds the stage duration defaults and the bounds applied to
// operator-supplied overrides. Defaults are exempt from the clamp.
type DurationConfig struct {
	WasherDefaultMinutes float64 `yaml:"washer_default_minutes"`
	DryerDefaultMinutes  float64 `yaml:"dryer_default_minutes"`
	MinOverrideMinutes   float64 `yaml:"min_override_minutes"`
	MaxOverrideMinutes   float64 `yaml:"max_override_minutes"`
}

// TrackerConfig holds the timer tick loop and job visibility settings.
type TrackerConfig struct {
	TickIntervalSeconds   int           `yaml:"tick_interval_seconds"`
	TickInterval          time.Duration `yaml:"-"` // Derived, ignored by YAML parser
	CompletedGraceSeconds int           `yaml:"completed_grace_seconds"`
	CompletedGrace        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in working values for anything the file left unset.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "file:laundry.db"
	}

	if cfg.Durations.WasherDefaultMinutes <= 0 {
		cfg.Durations.WasherDefaultMinutes = 35
	}
	if cfg.Durations.DryerDefaultMinutes <= 0 {
		cfg.Durations.DryerDefaultMinutes = 40
	}
	if cfg.Durations.MinOverrideMinutes <= 0 {
		cfg.Durations.MinOverrideMinutes = 0.01
	}
	if cfg.Durations.MaxOverrideMinutes <= 0 {
		cfg.Durations.MaxOverrideMinutes = 60
	}

	if cfg.Tracker.TickIntervalSeconds <= 0 {
		cfg.Tracker.TickIntervalSeconds = 1
	}
	cfg.Tracker.TickInterval = time.Duration(cfg.Tracker.TickIntervalSeconds) * time.Second

	if cfg.Tracker.CompletedGraceSeconds <= 0 {
		cfg.Tracker.CompletedGraceSeconds = 30
	}
	cfg.Tracker.CompletedGrace = time.Duration(cfg.Tracker.CompletedGraceSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
