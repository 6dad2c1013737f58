package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE of a unique constraint failure
const uniqueViolation = "23505"

// PostgresStore implements Store interface for PostgreSQL
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// SetPool applies connection pool limits
func (s *PostgresStore) SetPool(maxOpen, maxIdle int, lifetime time.Duration) {
	s.db.SetMaxOpenConns(maxOpen)
	s.db.SetMaxIdleConns(maxIdle)
	s.db.SetConnMaxLifetime(lifetime)
}

// Migrate creates missing tables
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *PostgresStore) BeginTx(ctx context.Context) (Store, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: s.db, tx: tx}, nil
}

// Commit commits the transaction
func (s *PostgresStore) Commit() error {
	if s.tx == nil {
		return nil
	}
	return s.tx.Commit()
}

// Rollback rolls back the transaction
func (s *PostgresStore) Rollback() error {
	if s.tx == nil {
		return nil
	}
	return s.tx.Rollback()
}

// getDB returns tx if in transaction, otherwise db
func (s *PostgresStore) getDB() interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// mapError converts driver errors to the package sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	return err
}

// expectOne maps zero affected rows to ErrNotFound
func expectOne(result sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
