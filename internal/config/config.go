// Package config loads prom settings from defaults, an optional config
// file, PROM_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// PROM_DATABASE_PATH or PROM_CACHE_TTL.
const EnvPrefix = "PROM"

// Config is the full set of prom settings.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Query    QueryConfig    `mapstructure:"query"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path" validate:"required"`
	Driver      string        `mapstructure:"driver" validate:"oneof=sqlite3 sqlite"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout" validate:"gte=0"`
	ForeignKeys bool          `mapstructure:"foreign_keys"`
}

type SchemaConfig struct {
	// File is a YAML or CUE table definition file.
	File string `mapstructure:"file"`

	// Table selects one table from File. It may be empty when File
	// defines a single table.
	Table string `mapstructure:"table"`
}

type QueryConfig struct {
	// ChunkSize is used by full iteration when no limit is given.
	ChunkSize int `mapstructure:"chunk_size" validate:"gt=0"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" validate:"required"`

	// Textfile, when set, receives the Prometheus text exposition of the
	// run's metrics on exit.
	Textfile string `mapstructure:"textfile"`
}

// Defaults holds the value of every key before files, env or flags apply.
var Defaults = map[string]any{
	"database.path":         "prom.db",
	"database.driver":       "sqlite3",
	"database.busy_timeout": 5 * time.Second,
	"database.foreign_keys": false,
	"schema.file":           "",
	"schema.table":          "",
	"query.chunk_size":      5000,
	"cache.enabled":         false,
	"cache.ttl":             time.Hour,
	"log.level":             "info",
	"log.format":            "text",
	"metrics.namespace":     "prom",
	"metrics.textfile":      "",
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"db":           "database.path",
	"driver":       "database.driver",
	"busy-timeout": "database.busy_timeout",
	"schema":       "schema.file",
	"table":        "schema.table",
	"chunk-size":   "query.chunk_size",
	"cache":        "cache.enabled",
	"cache-ttl":    "cache.ttl",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-file": "metrics.textfile",
}

// NewViper returns a viper instance with defaults and environment binding
// in place.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every flag in FlagKeys that flags defines.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads file (if not empty) into v, then decodes and validates the
// merged settings.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field constraint and reports all failures at once.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]string, len(verrs))
	for i, fe := range verrs {
		problems[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}
