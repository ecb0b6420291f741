package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every configurable value for the exporter.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Scrape struct {
		// CommandTimeout bounds one whmapi1/uapi invocation.
		CommandTimeout time.Duration `mapstructure:"command_timeout"`
		// KillGrace is how long a timed-out process gets between
		// SIGKILL being requested and the call returning anyway.
		KillGrace time.Duration `mapstructure:"kill_grace"`
		// MaxInFlight caps concurrently running panel commands.
		MaxInFlight int `mapstructure:"max_in_flight"`
		// Freshness: snapshots younger than this are served without
		// touching the panel again.
		Freshness time.Duration `mapstructure:"freshness"`
	} `mapstructure:"scrape"`

	Sources struct {
		Statsbar      bool `mapstructure:"statsbar"`
		ResourceUsage bool `mapstructure:"resource_usage"`
		Mysql         bool `mapstructure:"mysql"`
		Postgres      bool `mapstructure:"postgres"`
		Email         bool `mapstructure:"email"`
		Ftp           bool `mapstructure:"ftp"`
	} `mapstructure:"sources"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	// AllowNonRoot skips the effective-uid check at startup. whmapi1 and
	// uapi --user only work as root, so this is for development machines.
	AllowNonRoot bool `mapstructure:"allow_non_root"`
}

// Load reads configuration from (in decreasing priority):
//  1. environment variables (e.g. CPANEL_EXPORTER_SERVER_ADDR)
//  2. a yaml file (./configs/config.yaml) if it exists
//  3. built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":9123")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("scrape.command_timeout", 30*time.Second)
	v.SetDefault("scrape.kill_grace", 5*time.Second)
	v.SetDefault("scrape.max_in_flight", 8)
	v.SetDefault("scrape.freshness", 30*time.Second)

	v.SetDefault("sources.statsbar", true)
	v.SetDefault("sources.resource_usage", true)
	v.SetDefault("sources.mysql", true)
	v.SetDefault("sources.postgres", true)
	v.SetDefault("sources.email", true)
	v.SetDefault("sources.ftp", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("allow_non_root", false)

	v.SetEnvPrefix("cpanel_exporter")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Optional yaml file, useful for local dev or packaging.
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}

	if cfg.Scrape.MaxInFlight < 1 {
		return nil, fmt.Errorf("scrape.max_in_flight must be at least 1, got %d", cfg.Scrape.MaxInFlight)
	}
	if cfg.Scrape.CommandTimeout <= 0 {
		return nil, fmt.Errorf("scrape.command_timeout must be positive")
	}

	return &cfg, nil
}
