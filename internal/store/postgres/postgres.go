// Package postgres implements the store.Store interface backed by PostgreSQL.
// All keys of a namespace live in one table; revisions come from a global
// sequence so a deleted-and-recreated key never reuses an old revision.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/kvcomments/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db        *sql.DB
	namespace string
	maxValue  int
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL, namespace string, maxValueBytes int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newWithDB(db, namespace, maxValueBytes), nil
}

func newWithDB(db *sql.DB, namespace string, maxValueBytes int) *PostgresStore {
	return &PostgresStore{db: db, namespace: namespace, maxValue: maxValueBytes}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*store.Entry, error) {
	return queryGet(ctx, s.db, s.namespace, key)
}

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) (store.Revision, error) {
	if err := store.CheckSize(value, s.maxValue); err != nil {
		return "", err
	}
	return queryPut(ctx, s.db, s.namespace, key, value)
}

func (s *PostgresStore) Create(ctx context.Context, key string, value []byte) (store.Revision, error) {
	if err := store.CheckSize(value, s.maxValue); err != nil {
		return "", err
	}
	return queryCreate(ctx, s.db, s.namespace, key, value)
}

func (s *PostgresStore) Update(ctx context.Context, key string, value []byte, rev store.Revision) (store.Revision, error) {
	if err := store.CheckSize(value, s.maxValue); err != nil {
		return "", err
	}
	return queryUpdate(ctx, s.db, s.namespace, key, value, rev)
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	return queryDelete(ctx, s.db, s.namespace, key)
}
