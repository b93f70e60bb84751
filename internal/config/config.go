// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/gatekeeper-id/gatekeeper/sessions"
)

// Config is the full service configuration.
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"Gatekeeper"`
	Env     string `env:"ENV" envDefault:"DEV"`

	// Listen is a host:port address, or a unix socket path when it
	// contains a path separator.
	Listen     string `env:"LISTEN" envDefault:":8080"`
	SocketMode string `env:"SOCKET_MODE" envDefault:"0660"` // octal

	// SocketUID and SocketGID set the unix socket's owner after bind;
	// -1 leaves the respective id unchanged.
	SocketUID int `env:"SOCKET_UID" envDefault:"-1"`
	SocketGID int `env:"SOCKET_GID" envDefault:"-1"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/gatekeeper.db"`
	SessionDir   string `env:"SESSION_DIR" envDefault:"./data/sessions"`

	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`

	// AuthSteps is the ordered required verification flow.
	AuthSteps      []string `env:"AUTH_STEPS" envDefault:"primary,otp"`
	StepRetryLimit int      `env:"AUTH_STEP_RETRY_LIMIT" envDefault:"3"`
}

// Load parses and validates the environment configuration.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("[config.Load] parse env: %w", err)
	}
	if err := cfg.Flow().Validate(); err != nil {
		return nil, fmt.Errorf("[config.Load] AUTH_STEPS: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("[config.Load] SESSION_TTL must be positive")
	}
	if _, err := cfg.SocketFileMode(); err != nil {
		return nil, fmt.Errorf("[config.Load] SOCKET_MODE: %w", err)
	}
	return cfg, nil
}

// SocketFileMode parses SocketMode as octal permission bits.
func (c *Config) SocketFileMode() (os.FileMode, error) {
	mode, err := strconv.ParseUint(strings.TrimPrefix(c.SocketMode, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %q as octal: %w", c.SocketMode, err)
	}
	return os.FileMode(mode), nil
}

// Flow returns the configured verification flow.
func (c *Config) Flow() sessions.Flow {
	required := make([]sessions.StepKind, 0, len(c.AuthSteps))
	for _, step := range c.AuthSteps {
		required = append(required, sessions.StepKind(strings.TrimSpace(step)))
	}
	return sessions.Flow{Required: required, RetryBudget: c.StepRetryLimit}
}

// UnixSocket reports whether Listen names a unix socket path.
func (c *Config) UnixSocket() bool {
	return strings.Contains(c.Listen, "/")
}

// Dev reports whether the service runs in development mode.
func (c *Config) Dev() bool {
	return strings.EqualFold(c.Env, "DEV")
}
