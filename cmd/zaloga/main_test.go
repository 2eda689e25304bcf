package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zaloga.yaml")
	content := "database:\n  dsn: from-file.sqlite3\nserver:\n  addr: \":9000\"\nadmin:\n  username: filed\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("ZALOGA_DB_DSN", "from-env.sqlite3")

	cfg, err := loadConfig([]string{"-c", path, "-a", ":9100"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Database.DSN != "from-env.sqlite3" {
		t.Errorf("expected environment to override file DSN, got %q", cfg.Database.DSN)
	}
	if cfg.Server.Addr != ":9100" {
		t.Errorf("expected flag to override file addr, got %q", cfg.Server.Addr)
	}
	if cfg.Admin.Username != "filed" {
		t.Errorf("expected file username, got %q", cfg.Admin.Username)
	}

	cfg, err = loadConfig([]string{"-c", path, "-db", "from-flag.sqlite3"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Database.DSN != "from-flag.sqlite3" {
		t.Errorf("expected flag to override environment DSN, got %q", cfg.Database.DSN)
	}
}

func TestLoadConfigRejectsArguments(t *testing.T) {
	if _, err := loadConfig([]string{"serve"}); err == nil {
		t.Error("expected error for positional argument")
	}
}
