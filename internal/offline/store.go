package offline

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultPath is used when no store path is configured.
const DefaultPath = "quizsync-offline.db"

// Store is the durable local record store. Open it once at process start and
// share it; the single connection serialises every statement.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the store at path and brings its schema up
// to date. Upgrades run once; reopening an up-to-date store changes nothing.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, storageErr("open", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, storageErr("open", err)
	}

	version, err := migrateUp(db)
	if err != nil {
		_ = db.Close()
		return nil, storageErr("upgrade schema", err)
	}

	log = log.With().Str("component", "offline_store").Logger()
	log.Info().
		Str("path", path).
		Uint("schema_version", version).
		Msg("Offline store opened")

	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrateUp(db *sql.DB) (uint, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load migrations: %w", err)
	}

	drv, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return 0, fmt.Errorf("migration driver: %w", err)
	}

	// The migrate instance is not closed: closing it would close db as well.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return 0, fmt.Errorf("init migrate: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// Counts reports how many records each collection holds.
type Counts struct {
	Submissions int `json:"submissions"`
	Quizzes     int `json:"quizzes"`
	UserData    int `json:"user_data"`
}

// Total is the number of records across all collections.
func (c Counts) Total() int {
	return c.Submissions + c.Quizzes + c.UserData
}

// Count returns the record count of every collection.
func (s *Store) Count(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM offline_submissions),
			(SELECT COUNT(*) FROM offline_quizzes),
			(SELECT COUNT(*) FROM user_data)`,
	).Scan(&c.Submissions, &c.Quizzes, &c.UserData)
	if err != nil {
		return Counts{}, storageErr("count", err)
	}
	return c, nil
}

// Clear empties every collection in one transaction.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("clear", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"offline_submissions", "offline_quizzes", "user_data"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return storageErr("clear "+table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("clear", err)
	}
	return nil
}
