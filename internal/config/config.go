// Package config loads service settings from an optional file, environment
// variables prefixed with PINREPORT_ and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PINREPORT_HTTP_LISTEN.
const EnvPrefix = "PINREPORT"

type Config struct {
	HTTP struct {
		Listen          string        `mapstructure:"listen"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	DB struct {
		Driver   string `mapstructure:"driver"`
		Postgres struct {
			DSN      string `mapstructure:"dsn"`
			MaxConns int32  `mapstructure:"max_conns"`
		} `mapstructure:"postgres"`
		SQLite struct {
			Path string `mapstructure:"path"`
		} `mapstructure:"sqlite"`
	} `mapstructure:"db"`
	Storage struct {
		BaseURL    string `mapstructure:"base_url"`
		PlanBucket string `mapstructure:"plan_bucket"`
	} `mapstructure:"storage"`
	Fetch struct {
		Timeout  time.Duration `mapstructure:"timeout"`
		MaxBytes int64         `mapstructure:"max_bytes"`
	} `mapstructure:"fetch"`
	Snapshot struct {
		Timeout     time.Duration `mapstructure:"timeout"`
		Concurrency int           `mapstructure:"concurrency"`
		CropWidth   float64       `mapstructure:"crop_width"`
		CropHeight  float64       `mapstructure:"crop_height"`
		Zoom        float64       `mapstructure:"zoom"`
		Page        int           `mapstructure:"page"`
	} `mapstructure:"snapshot"`
	Report struct {
		CompanyName string `mapstructure:"company_name"`
		Filename    string `mapstructure:"filename"`
	} `mapstructure:"report"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.postgres.dsn", "")
	v.SetDefault("db.postgres.max_conns", 10)
	v.SetDefault("db.sqlite.path", "data/pinreport.db")
	v.SetDefault("storage.base_url", "")
	v.SetDefault("storage.plan_bucket", "plans")
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.max_bytes", 50<<20)
	v.SetDefault("snapshot.timeout", 20*time.Second)
	v.SetDefault("snapshot.concurrency", 4)
	v.SetDefault("snapshot.crop_width", 200)
	v.SetDefault("snapshot.crop_height", 200)
	v.SetDefault("snapshot.zoom", 2)
	v.SetDefault("snapshot.page", 1)
	v.SetDefault("report.company_name", "Nom de l'entreprise")
	v.SetDefault("report.filename", "report.pdf")
}

// Load reads path (when not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case "postgres":
		if c.DB.Postgres.DSN == "" {
			errs = append(errs, errors.New("db.postgres.dsn is required for the postgres driver"))
		}
	case "sqlite":
		if c.DB.SQLite.Path == "" {
			errs = append(errs, errors.New("db.sqlite.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("db.driver: unknown driver %q", c.DB.Driver))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: want text or json, got %q", c.Log.Format))
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, errors.New("fetch.max_bytes must be positive"))
	}
	if c.Snapshot.Concurrency < 1 {
		errs = append(errs, errors.New("snapshot.concurrency must be at least 1"))
	}
	if c.Snapshot.CropWidth <= 0 || c.Snapshot.CropHeight <= 0 {
		errs = append(errs, errors.New("snapshot crop size must be positive"))
	}
	if c.Snapshot.Zoom <= 0 {
		errs = append(errs, errors.New("snapshot.zoom must be positive"))
	}
	if c.Snapshot.Page < 1 {
		errs = append(errs, errors.New("snapshot.page is 1-based"))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
