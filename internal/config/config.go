package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Development defaults, applied in Load when the variable is unset.
const (
	DefaultDSN         = "host=localhost user=postgres password=postgres dbname=parami port=5432 sslmode=disable"
	DefaultCORSOrigins = "http://localhost:5173"
)

type Config struct {
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	DatabaseDSN string `envconfig:"DATABASE_DSN"`
	JWTSecret   string `envconfig:"JWT_SECRET"`
	CORSOrigins string `envconfig:"CORS_ALLOWED_ORIGINS"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // text | json
	LogFile   string `envconfig:"LOG_FILE"`

	// Cron expression for the stock/batch drift check; empty disables it.
	ReconcileSchedule string `envconfig:"RECONCILE_SCHEDULE"`

	ScanHistoryLimit int `envconfig:"SCAN_HISTORY_LIMIT" default:"500"`
	SyncLogLimit     int `envconfig:"SYNC_LOG_LIMIT" default:"200"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not read .env, using process environment only")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "reading environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = DefaultDSN
		log.Warn("DATABASE_DSN is using the default value, set your own Postgres connection for production")
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = DefaultCORSOrigins
		log.Warn("CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production")
	}

	return &cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.ScanHistoryLimit <= 0 || c.SyncLogLimit <= 0 {
		return errors.New("SCAN_HISTORY_LIMIT and SYNC_LOG_LIMIT must be positive")
	}
	return nil
}
