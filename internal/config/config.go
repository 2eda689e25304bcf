package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/zaloga/internal/db"
)

// EnvDSN overrides the database DSN from the environment.
const EnvDSN = "ZALOGA_DB_DSN"

// DatabaseConfig selects the backend. For SQLite the DSN is a file path.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

type AdminConfig struct {
	Username string `yaml:"username"`
}

// Config is the server configuration. Values come from defaults, then the
// optional YAML file, then the environment, then command-line flags.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: string(db.DialectSQLite), DSN: "zaloga.sqlite3"},
		Server:   ServerConfig{Addr: ":8080"},
		Log:      LogConfig{Level: "info"},
		Admin:    AdminConfig{Username: "Admin"},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected. An
// empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides using getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if dsn := getenv(EnvDSN); dsn != "" {
		c.Database.DSN = dsn
	}
}

// Validate checks that the configuration can be used to start the server.
func (c *Config) Validate() error {
	switch db.Dialect(c.Database.Driver) {
	case db.DialectSQLite, db.DialectPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q",
			db.DialectSQLite, db.DialectPostgres, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if strings.TrimSpace(c.Admin.Username) == "" {
		return errors.New("admin.username is required")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured level. Empty means info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// SQLite reports whether the configured backend is a SQLite file.
func (c *Config) SQLite() bool {
	return db.Dialect(c.Database.Driver) == db.DialectSQLite
}
