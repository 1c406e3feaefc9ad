package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

// Config is read once at startup from MINDWELL_* variables.
type Config struct {
	Addr           string        `env:"ADDR"             envDefault:":8080"`
	SQLitePath     string        `env:"SQLITE_PATH"`
	MigrationsDir  string        `env:"MIGRATIONS_DIR"`
	JWTSecret      string        `env:"JWT_SECRET"       envDefault:"dev-secret-change-me"`
	LogMode        string        `env:"LOG_MODE"         envDefault:"prod"`
	LogHashSalt    string        `env:"LOG_HASH_SALT"`
	SourceTimeout  time.Duration `env:"SOURCE_TIMEOUT"   envDefault:"2s"`
	Timezone       string        `env:"TIMEZONE"         envDefault:"UTC"`
	StaticDir      string        `env:"STATIC_DIR"`
	DevFrontendURL string        `env:"DEV_FRONTEND_URL"`
	CORSOrigin     string        `env:"CORS_ORIGIN"`
	Commit         string        `env:"COMMIT"`
	BuildTime      string        `env:"BUILD_TIME"`

	location *time.Location
}

// Location is Timezone resolved by Load; UTC on a zero Config.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

const envPrefix = "MINDWELL_"

// Load parses the environment and resolves derived fields. An unknown time
// zone or a non-positive source timeout is a startup error.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc
	if cfg.SourceTimeout <= 0 {
		return Config{}, fmt.Errorf("%sSOURCE_TIMEOUT must be positive, got %s", envPrefix, cfg.SourceTimeout)
	}
	return cfg, nil
}
