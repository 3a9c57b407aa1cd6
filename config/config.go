// Package config loads fundingd settings from file, environment and flags.
//
// Precedence (highest first): command-line flags bound to viper, FUNDING_*
// environment variables, the config file, then the defaults below.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is prepended to every environment override, e.g. FUNDING_SERVER_PORT.
const EnvPrefix = "FUNDING"

// Config is the resolved runtime configuration.
type Config struct {
	Server   Server
	Database Database
	Logging  Logging
	Pricing  Pricing
	Monitor  Monitor
	TimeZone string
}

type Server struct {
	Port            int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type Database struct {
	// Path is a SQLite file, or ":memory:" for a throwaway ledger.
	Path string
}

type Logging struct {
	Level  string
	Format string
}

type Pricing struct {
	// File is an optional YAML or JSON pricing file layered over the defaults.
	File string
}

// Monitor configures the background low-balance check.
type Monitor struct {
	Enabled      bool
	Interval     time.Duration
	LowThreshold decimal.Decimal // fraction of a category total
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.path", "funding.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("pricing.file", "")
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", "1h")
	v.SetDefault("monitor.low_threshold", "0.10")
	v.SetDefault("timezone", "Australia/Sydney")
}

// ReadInConfig points v at cfgFile (or ./fundingd.yaml when empty), enables
// environment overrides and reads the file. A missing default file is not
// an error; a missing explicit file is.
func ReadInConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("fundingd")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load resolves a Config from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Server: Server{
			Port:            v.GetInt("server.port"),
			AllowedOrigins:  v.GetStringSlice("server.allowed_origins"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: Database{Path: ExpandPath(v.GetString("database.path"))},
		Logging: Logging{
			Level:  strings.ToLower(v.GetString("logging.level")),
			Format: strings.ToLower(v.GetString("logging.format")),
		},
		Pricing: Pricing{File: ExpandPath(v.GetString("pricing.file"))},
		Monitor: Monitor{
			Enabled:  v.GetBool("monitor.enabled"),
			Interval: v.GetDuration("monitor.interval"),
		},
		TimeZone: v.GetString("timezone"),
	}

	threshold, err := decimal.NewFromString(v.GetString("monitor.low_threshold"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid monitor.low_threshold: %w", err)
	}
	cfg.Monitor.LowThreshold = threshold

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	if cfg.Database.Path == "" {
		return Config{}, fmt.Errorf("database.path is required")
	}
	if cfg.Monitor.Enabled && cfg.Monitor.Interval <= 0 {
		return Config{}, fmt.Errorf("invalid monitor.interval %s", cfg.Monitor.Interval)
	}
	if threshold.IsNegative() || threshold.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("invalid monitor.low_threshold %s", threshold)
	}
	if _, err := zapcore.ParseLevel(cfg.Logging.Level); err != nil {
		return Config{}, fmt.Errorf("invalid logging.level: %w", err)
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return Config{}, fmt.Errorf("invalid logging.format: %s", cfg.Logging.Format)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location returns the time zone used for local timestamps.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// NewLogger builds a zap logger for the configured level and format.
func NewLogger(l Logging) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var zc zap.Config
	switch l.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(path string) string {
	if path == "" || path == ":memory:" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
