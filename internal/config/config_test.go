package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvSessionSecret, "test-secret")
	t.Setenv(EnvMaskingSalt, "test-salt")
	t.Setenv(EnvPGDSN, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.Auth.MaxLoginAttempts != 3 {
		t.Fatalf("unexpected max attempts: %d", cfg.Auth.MaxLoginAttempts)
	}
	if cfg.Session.TTL() != 60*time.Minute {
		t.Fatalf("unexpected session ttl: %v", cfg.Session.TTL())
	}
	if cfg.Session.Sliding {
		t.Fatal("expected absolute expiry by default")
	}
	if cfg.Audit.RetryAttempts != 3 {
		t.Fatalf("unexpected audit retries: %d", cfg.Audit.RetryAttempts)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	t.Setenv(EnvSessionSecret, "test-secret")
	t.Setenv(EnvMaskingSalt, "test-salt")

	path := filepath.Join(t.TempDir(), "orggate.yaml")
	body := []byte("listen_addr: \":9090\"\nauth:\n  max_login_attempts: 5\nsession:\n  ttl_minutes: 30\n  sliding: true\n  single_session: true\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.Auth.MaxLoginAttempts != 5 {
		t.Fatalf("unexpected max attempts: %d", cfg.Auth.MaxLoginAttempts)
	}
	if !cfg.Session.Sliding || !cfg.Session.SingleSession {
		t.Fatal("expected sliding single-session config")
	}
	if cfg.Session.TTL() != 30*time.Minute {
		t.Fatalf("unexpected ttl: %v", cfg.Session.TTL())
	}
}

func TestLoadFailsClosedWithoutSecrets(t *testing.T) {
	t.Setenv(EnvSessionSecret, "")
	t.Setenv(EnvMaskingSalt, "")

	if _, err := Load(""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
