// Package database provides the Postgres warehouse client and migration
// utilities. Every table the pipeline writes (spec.md §3) is append-only
// except the device-registration upsert and the event_batches.processed
// flag the state-estimator transform sets; there is no ORM/codegen layer
// here — the warehouse is addressed through hand-written parameterized
// SQL in pkg/warehouse, scanned into structs by sqlx.
package database

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds Postgres connection and pool settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Client wraps an *sqlx.DB. Repositories in pkg/warehouse take *Client
// (or its embedded *sqlx.DB) rather than a bare *sql.DB so they can use
// sqlx's Get/Select convenience without re-wrapping per call.
type Client struct {
	*sqlx.DB
}

// NewClientFromDB wraps an existing *sqlx.DB (useful for tests that hand
// in a sqlmock-backed DB).
func NewClientFromDB(db *sqlx.DB) *Client {
	return &Client{DB: db}
}

// NewClient opens a pooled connection to Postgres, applies pending
// migrations, and returns a ready-to-use Client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{DB: sqlx.NewDb(db, "pgx")}, nil
}

// Migrate applies every embedded migration in order against an
// already-open connection. Exported so integration tests can run
// migrations against a per-test schema reached through a connection
// string NewClient's Config can't express (e.g. a search_path query
// parameter), while still sharing the one real migration path.
//
// Migration workflow:
//  1. Add a new numbered .sql file under pkg/database/migrations/.
//  2. go:embed bakes it into the binary at compile time.
//  3. Deploy: the app applies pending migrations on startup (this func).
func Migrate(db *stdsql.DB, databaseName string) error {
	return migrateSchema(db, databaseName, "")
}

// MigrateSchema applies every embedded migration the same way Migrate
// does, but scopes golang-migrate's own schema_migrations tracking table
// to schemaName instead of the connection's default search_path entry.
// Integration tests that isolate each test under its own Postgres schema
// need this: without it every test's tracking table would collide in
// public, since postgres.Config{} alone doesn't follow a search_path
// set only via the connection string.
func MigrateSchema(db *stdsql.DB, databaseName, schemaName string) error {
	return migrateSchema(db, databaseName, schemaName)
}

func migrateSchema(db *stdsql.DB, databaseName, schemaName string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found — binary may be built incorrectly")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{SchemaName: schemaName})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the migration source. Do NOT call m.Close(): that also
	// closes the database driver, which would call db.Close() on the
	// shared *sql.DB we hand back to the caller.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}

	return nil
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && len(entry.Name()) > 4 && entry.Name()[len(entry.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
