// Package config reads process configuration from RETRACE_* environment
// variables and an optional retrace.yaml. Dataset shape lives in the
// profile, not here.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. RETRACE_LOG_LEVEL.
const EnvPrefix = "RETRACE"

// Config groups the process settings.
type Config struct {
	App      AppConfig
	Output   OutputConfig
	Store    StoreConfig
	Postgres PostgresConfig

	// ProfilePath is the CUE dataset profile. Empty means the built-in
	// reference profile.
	ProfilePath string

	// Workers overrides the profile's inventory worker count when positive.
	Workers int
}

// AppConfig holds logging settings.
type AppConfig struct {
	Env      string // development -> console output; anything else -> JSON
	LogLevel string // trace, debug, info, warn, error
}

// OutputConfig controls the CSV sink.
type OutputConfig struct {
	Dir string
}

// StoreConfig controls the SQLite row store.
type StoreConfig struct {
	SQLitePath string
}

// PostgresConfig controls the optional warehouse sink. An empty DSN
// disables it.
type PostgresConfig struct {
	DSN      string
	MaxConns int
}

// Enabled reports whether the Postgres sink is configured.
func (c PostgresConfig) Enabled() bool {
	return c.DSN != ""
}

// Load reads the configuration. path names an explicit config file; when
// empty, retrace.yaml is looked up in the working directory and
// $HOME/.config/retrace and silently skipped if absent.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("retrace")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/retrace")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("app.env"),
			LogLevel: v.GetString("log.level"),
		},
		Output: OutputConfig{
			Dir: v.GetString("output.dir"),
		},
		Store: StoreConfig{
			SQLitePath: v.GetString("store.sqlite_path"),
		},
		Postgres: PostgresConfig{
			DSN:      v.GetString("postgres.dsn"),
			MaxConns: v.GetInt("postgres.max_conns"),
		},
		ProfilePath: v.GetString("profile.path"),
		Workers:     v.GetInt("generator.workers"),
	}

	if cfg.Workers < 0 {
		return nil, fmt.Errorf("generator.workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.Postgres.MaxConns <= 0 {
		return nil, fmt.Errorf("postgres.max_conns must be positive, got %d", cfg.Postgres.MaxConns)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("log.level", "info")
	v.SetDefault("output.dir", "data")
	v.SetDefault("store.sqlite_path", "retrace.db")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("profile.path", "")
	v.SetDefault("generator.workers", 0)
}
