package store

import (
	"context"
	"testing"

	"github.com/erazemk/zaloga/internal/db"
)

func TestEnsureSettingKeepsFirstValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, ok, err := Setting(ctx, database, "site"); err != nil || ok {
		t.Fatalf("expected unset setting, got ok=%v err=%v", ok, err)
	}

	first, err := EnsureSetting(ctx, database, "site", "ljubljana")
	if err != nil {
		t.Fatalf("EnsureSetting: %v", err)
	}
	second, _ := EnsureSetting(ctx, database, "site", "maribor")
	if first != "ljubljana" || second != "ljubljana" {
		t.Errorf("expected first value to stick, got %q then %q", first, second)
	}
}

func TestJWTSecretIsGeneratedOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret, err := JWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("JWTSecret: %v", err)
	}
	if len(secret) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(secret))
	}

	again, _ := JWTSecret(ctx, database)
	if again != secret {
		t.Error("expected the stored secret to be reused")
	}
}
