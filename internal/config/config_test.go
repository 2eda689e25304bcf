package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zaloga.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "zaloga.sqlite3" {
		t.Errorf("unexpected database defaults %+v", cfg.Database)
	}
	if cfg.Server.Addr != ":8080" || cfg.Admin.Username != "Admin" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://zaloga@localhost/zaloga
log:
  level: warn
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "postgres" || !strings.HasPrefix(cfg.Database.DSN, "postgres://") {
		t.Errorf("expected postgres settings, got %+v", cfg.Database)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr to survive, got %q", cfg.Server.Addr)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil || level != slog.LevelWarn {
		t.Errorf("expected warn level, got %v (%v)", level, err)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 8080\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(func(key string) string {
		if key == EnvDSN {
			return "/var/lib/zaloga/db.sqlite3"
		}
		return ""
	})
	if cfg.Database.DSN != "/var/lib/zaloga/db.sqlite3" {
		t.Errorf("expected DSN from environment, got %q", cfg.Database.DSN)
	}

	cfg.ApplyEnv(func(string) string { return "" })
	if cfg.Database.DSN != "/var/lib/zaloga/db.sqlite3" {
		t.Errorf("empty variable should not clear DSN, got %q", cfg.Database.DSN)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"blank admin", func(c *Config) { c.Admin.Username = "  " }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
