package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration that cannot be used safely. Startup fails
// closed on it rather than running with a permissive fallback.
var ErrInvalid = errors.New("config: invalid")

const (
	// EnvPGDSN optionally points the user store at PostgreSQL. Empty means
	// the in-memory store seeded from the users file.
	EnvPGDSN = "ORGGATE_PG_DSN"
	// EnvSessionSecret holds the HMAC secret for session tokens.
	EnvSessionSecret = "ORGGATE_SESSION_SECRET"
	// EnvMaskingSalt holds the per-deployment salt for hash masking.
	EnvMaskingSalt = "ORGGATE_MASKING_SALT"
)

// AuthConfig holds credential verification and lockout settings.
type AuthConfig struct {
	MaxLoginAttempts    int `yaml:"max_login_attempts"`
	AttemptWindowMins   int `yaml:"attempt_window_mins"`
	LockoutDurationMins int `yaml:"lockout_duration_mins"`
}

// AttemptWindow returns the rolling window for counting failed logins.
func (c AuthConfig) AttemptWindow() time.Duration {
	return time.Duration(c.AttemptWindowMins) * time.Minute
}

// LockoutDuration returns how long a locked account stays locked.
// Zero means locked until explicit unlock.
func (c AuthConfig) LockoutDuration() time.Duration {
	return time.Duration(c.LockoutDurationMins) * time.Minute
}

// SessionConfig holds session issuance and expiry settings.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
	// Sliding resets expiry on each validated use; absolute expiry from
	// issuance is the default.
	Sliding bool `yaml:"sliding"`
	// SingleSession revokes a user's previous sessions on a new login.
	SingleSession bool `yaml:"single_session"`
	SweepMins     int  `yaml:"sweep_mins"`
}

// TTL returns the session lifetime.
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// SweepInterval returns how often expired sessions are purged.
func (c SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepMins) * time.Minute
}

// AuditConfig holds audit log storage settings.
type AuditConfig struct {
	Path          string `yaml:"path"`
	RetryAttempts int    `yaml:"retry_attempts"`
	// LogSuccess also records fully successful authorize/fetch calls.
	// Denials, omissions, and maskings are always recorded.
	LogSuccess bool `yaml:"log_success"`
}

// Config holds all service configuration.
type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	UsersFile  string        `yaml:"users_file"`
	Auth       AuthConfig    `yaml:"auth"`
	Session    SessionConfig `yaml:"session"`
	Audit      AuditConfig   `yaml:"audit"`

	// Resolved from the environment, never from the file.
	PGDSN         string `yaml:"-"`
	SessionSecret string `yaml:"-"`
	MaskingSalt   string `yaml:"-"`
}

// ApplyDefaults fills zero-valued fields with safe defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Auth.MaxLoginAttempts == 0 {
		cfg.Auth.MaxLoginAttempts = 3
	}
	if cfg.Auth.AttemptWindowMins == 0 {
		cfg.Auth.AttemptWindowMins = 15
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 60
	}
	if cfg.Session.SweepMins == 0 {
		cfg.Session.SweepMins = 5
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = "orggate-audit.db"
	}
	if cfg.Audit.RetryAttempts == 0 {
		cfg.Audit.RetryAttempts = 3
	}
}

// Validate rejects configuration the service cannot run safely with.
func (cfg *Config) Validate() error {
	if cfg.Auth.MaxLoginAttempts < 1 {
		return fmt.Errorf("%w: auth.max_login_attempts must be positive", ErrInvalid)
	}
	if cfg.Session.TTLMinutes < 1 {
		return fmt.Errorf("%w: session.ttl_minutes must be positive", ErrInvalid)
	}
	if cfg.SessionSecret == "" {
		return fmt.Errorf("%w: %s is not set", ErrInvalid, EnvSessionSecret)
	}
	if cfg.MaskingSalt == "" {
		return fmt.Errorf("%w: %s is not set", ErrInvalid, EnvMaskingSalt)
	}
	return nil
}

// Load reads the YAML file at path (optional), applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	}
	cfg.PGDSN = strings.TrimSpace(os.Getenv(EnvPGDSN))
	cfg.SessionSecret = strings.TrimSpace(os.Getenv(EnvSessionSecret))
	cfg.MaskingSalt = strings.TrimSpace(os.Getenv(EnvMaskingSalt))
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
