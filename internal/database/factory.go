package database

import (
	"fmt"
	"path/filepath"

	"nexus-go/internal/config"
	"nexus-go/internal/nexus"
)

// NewContactStoreFromConfig creates a ContactStore based on the database
// config type. The three backends share one contract; which one runs is
// purely a deployment decision.
func NewContactStoreFromConfig(cfg config.DatabaseConfig) (nexus.ContactStore, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgresStore(cfg.DSN(), PostgresOptions{
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "nexus.db"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// DialectFor maps a database config type to its migration dialect.
// Memory stores have no schema and return false.
func DialectFor(cfg config.DatabaseConfig) (dialect string, ok bool) {
	switch cfg.Type {
	case "postgres":
		return "postgres", true
	case "sqlite":
		return "sqlite", true
	default:
		return "", false
	}
}
