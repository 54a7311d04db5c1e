package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog"
)

// Config holds all environment backed configuration for the portal API.
type Config struct {
	Port        int    `env:"APP_PORT" envDefault:"8084"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Database
	DBDSN             string        `env:"DB_DSN,notEmpty"`
	DBMaxIdle         int           `env:"DB_MAX_IDLE" envDefault:"10"`
	DBMaxOpen         int           `env:"DB_MAX_OPEN" envDefault:"25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	AutoMigrate       bool          `env:"AUTO_MIGRATE" envDefault:"true"`

	// Tokens are shared by the REST API and the websocket handshake.
	JWTSecret   string        `env:"JWT_SECRET,notEmpty"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"rh-portal"`
	JWTAudience string        `env:"JWT_AUDIENCE" envDefault:"rh-portal-web"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"12h"`

	// Websocket
	WSInsecureSkipVerify bool     `env:"WS_INSECURE_SKIP_VERIFY" envDefault:"false"`
	WSOriginPatterns     []string `env:"WS_ORIGIN_PATTERNS" envSeparator:","`

	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: expected json or console", cfg.LogFormat)
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive")
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
