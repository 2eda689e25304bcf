// Package bootstrap prepares a database for the server and the CLI: it
// opens the configured backend, applies the schema and seeds the first
// admin account.
package bootstrap

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/zaloga/internal/config"
	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// PasswordLength is the length of generated admin passwords.
const PasswordLength = 16

// Open opens the configured database and ensures the schema exists.
func Open(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return database, nil
}

// EnsureAdmin creates an admin account with a generated password if the
// database has no users yet. The password is returned only when the
// account was created; it is not stored anywhere in clear text.
func EnsureAdmin(ctx context.Context, database *db.DB, username string) (string, bool, error) {
	n, err := store.CountActiveUsers(ctx, database, "")
	if err != nil {
		return "", false, err
	}
	if n > 0 {
		return "", false, nil
	}

	password, err := GeneratePassword(PasswordLength)
	if err != nil {
		return "", false, fmt.Errorf("generating password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", false, fmt.Errorf("hashing password: %w", err)
	}
	if _, err := store.CreateUser(ctx, database, username, string(hash), model.RoleAdmin); err != nil {
		return "", false, fmt.Errorf("creating admin user: %w", err)
	}
	return password, true, nil
}

// GeneratePassword creates a random password of the given length.
func GeneratePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
