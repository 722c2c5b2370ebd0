package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "OBJECTD_CONFIG"

// DefaultPath is used when EnvPath is unset.
const DefaultPath = "config/objectd.toml"

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Assets   AssetsConfig   `toml:"assets"`
	Redis    RedisConfig    `toml:"redis"`
	Database DatabaseConfig `toml:"database"`
	Network  NetworkConfig  `toml:"network"`
	Journal  JournalConfig  `toml:"journal"`
	Logging  LoggingConfig  `toml:"logging"`
	Profile  ProfileConfig  `toml:"profile"`
}

type ServerConfig struct {
	Name      string        `toml:"name"`
	BaseURL   string        `toml:"base_url"` // relative object URLs resolve against this
	TickRate  time.Duration `toml:"tick_rate"`
	StartTime int64         // set at boot, not from config
}

type AssetsConfig struct {
	HTTPTimeout      time.Duration `toml:"http_timeout"`
	MaxBytes         int64         `toml:"max_bytes"`
	FileRoot         string        `toml:"file_root"` // serves file:// urls; empty disables
	Workers          int           `toml:"workers"`
	StrictComponents bool          `toml:"strict_components"` // drop kinds missing from the catalog
	ScriptsDir       string        `toml:"scripts_dir"`
	DrainPerTick     int           `toml:"drain_per_tick"` // owner tasks run per tick, 0 = all
}

type RedisConfig struct {
	Enabled bool          `toml:"enabled"`
	Addr    string        `toml:"addr"`
	DB      int           `toml:"db"`
	TTL     time.Duration `toml:"ttl"`
	Prefix  string        `toml:"prefix"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables the spawn journal
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type NetworkConfig struct {
	BindAddress       string        `toml:"bind_address"`
	InQueueSize       int           `toml:"in_queue_size"`
	OutQueueSize      int           `toml:"out_queue_size"`
	MaxPacketsPerTick int           `toml:"max_packets_per_tick"`
	PacketsPerSecond  int           `toml:"packets_per_second"` // per session, 0 = unlimited
	WriteTimeout      time.Duration `toml:"write_timeout"`
	ReadTimeout       time.Duration `toml:"read_timeout"`
}

type JournalConfig struct {
	FlushIntervalTicks int  `toml:"flush_interval_ticks"`
	ReplayOnBoot       bool `toml:"replay_on_boot"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ProfileConfig struct {
	Mode string `toml:"mode"` // "", "cpu", "mem", "trace"
	Path string `toml:"path"`
}

// Path returns the config path to load.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes TOML over the defaults. name is only used in errors.
func Parse(data []byte, name string) (*Config, error) {
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", name, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("server.tick_rate must be positive")
	}
	if c.Assets.Workers <= 0 {
		return fmt.Errorf("assets.workers must be positive")
	}
	if c.Journal.FlushIntervalTicks <= 0 {
		return fmt.Errorf("journal.flush_interval_ticks must be positive")
	}
	switch c.Profile.Mode {
	case "", "cpu", "mem", "trace":
	default:
		return fmt.Errorf("unknown profile.mode %q", c.Profile.Mode)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "objectd",
			BaseURL:  "http://localhost:8000/",
			TickRate: 50 * time.Millisecond,
		},
		Assets: AssetsConfig{
			HTTPTimeout: 15 * time.Second,
			MaxBytes:    16 << 20,
			Workers:     8,
			ScriptsDir:  "scripts",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			TTL:    10 * time.Minute,
			Prefix: "objectd:asset:",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Network: NetworkConfig{
			BindAddress:       "0.0.0.0:7400",
			InQueueSize:       128,
			OutQueueSize:      256,
			MaxPacketsPerTick: 32,
			PacketsPerSecond:  200,
			WriteTimeout:      10 * time.Second,
			ReadTimeout:       60 * time.Second,
		},
		Journal: JournalConfig{
			FlushIntervalTicks: 20,
			ReplayOnBoot:       true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Profile: ProfileConfig{
			Path: ".",
		},
	}
}
