package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"nexus-go/internal/config"
	"nexus-go/internal/database"
	"nexus-go/internal/database/migrations"
	"nexus-go/internal/encryption"
	"nexus-go/internal/ledger"
	"nexus-go/internal/nexus"
	"nexus-go/internal/objectstore"
	"nexus-go/internal/session"
)

// sqlStore is implemented by the SQL-backed contact stores; it exposes the
// raw connection for migration checks.
type sqlStore interface {
	DB() *sql.DB
}

// App is the application layer between the CLI/HTTP surface and the Service.
// It constructs all dependencies from config and manages their lifecycle on
// Close.
type App struct {
	Cfg       *config.Config
	Store     nexus.ContactStore
	Objects   nexus.ObjectStore
	Ledger    nexus.Ledger
	Sessions  nexus.SessionStore
	Encryptor nexus.Encryptor
	Service   *nexus.Service

	logFile *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the command being run (e.g. "Add", "Serve") and tags every log
// line of this invocation. The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	store, err := database.NewContactStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := checkSchema(store, cfg.Database); err != nil {
		store.Close()
		return nil, err
	}

	objects, err := objectstore.NewObjectStoreFromConfig(ctx, &cfg.ObjectStore)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating object store: %w", err)
	}

	ldg, err := ledger.NewLedgerFromConfig(&cfg.Ledger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating ledger: %w", err)
	}

	sessions, err := session.NewSessionStoreFromConfig(ctx, &cfg.Session)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := nexus.NewService(store, objects, ldg, sessions, enc,
		&slogAdapter{l: logger}, nexus.RealClock{}, nexus.UUIDGenerator{}, nexus.DefaultRetryPolicy)

	return &App{
		Cfg:       cfg,
		Store:     store,
		Objects:   objects,
		Ledger:    ldg,
		Sessions:  sessions,
		Encryptor: enc,
		Service:   svc,
		logFile:   logFile,
	}, nil
}

// checkSchema refuses to run against an out-of-date SQL schema. Memory
// stores carry no schema and always pass.
func checkSchema(store nexus.ContactStore, cfg config.DatabaseConfig) error {
	dialect, ok := database.DialectFor(cfg)
	if !ok {
		return nil
	}
	s, ok := store.(sqlStore)
	if !ok {
		return nil
	}
	if err := migrations.CheckStatus(s.DB(), migrations.Dialect(dialect)); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}
	return nil
}

// Migrate applies all pending schema migrations for SQL-backed stores.
// It builds its own store so it can run before the schema check would fail.
func Migrate(cfg *config.Config) error {
	dialect, ok := database.DialectFor(cfg.Database)
	if !ok {
		return fmt.Errorf("database type %q has no migrations", cfg.Database.Type)
	}

	store, err := database.NewContactStoreFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer store.Close()

	s, ok := store.(sqlStore)
	if !ok {
		return fmt.Errorf("database type %q has no migrations", cfg.Database.Type)
	}
	return migrations.Up(s.DB(), migrations.Dialect(dialect))
}

// Close releases all resources held by the App.
func (a *App) Close() error {
	var firstErr error

	if err := a.Store.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if c, ok := a.Sessions.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing session store: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
