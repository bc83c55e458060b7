package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresDriver is the database/sql driver name registered by pgx.
const PostgresDriver = "pgx"

const DefaultPostgresTable = "schoolgate_sessions"

// PostgresOptions configures a Postgres storage.
type PostgresOptions struct {
	DB      *sql.DB
	Table   string
	Timeout time.Duration
}

// PostgresStorage stores the session blob in a key/value table.
type PostgresStorage struct {
	DB      *sql.DB
	Table   string
	Timeout time.Duration
}

// OpenPostgres opens a pgx-backed database handle.
func OpenPostgres(dsn string) (*sql.DB, error) {
	return sql.Open(PostgresDriver, dsn)
}

// NewPostgresStorage builds a Postgres-backed storage.
func NewPostgresStorage(options PostgresOptions) (*PostgresStorage, error) {
	if options.DB == nil {
		return nil, errors.New("postgres db is required")
	}
	table := strings.TrimSpace(options.Table)
	if table == "" {
		table = DefaultPostgresTable
	}
	if !validPostgresTable(table) {
		return nil, fmt.Errorf("invalid postgres table name: %s", table)
	}
	return &PostgresStorage{DB: options.DB, Table: table, Timeout: options.Timeout}, nil
}

// EnsureTable creates the storage table if it does not exist.
func (s *PostgresStorage) EnsureTable(ctx context.Context) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, s.Table)
	_, err := s.DB.ExecContext(ctx, createTable)
	return err
}

// Load returns the value under key.
func (s *PostgresStorage) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var payload []byte
	query := fmt.Sprintf("SELECT data FROM %s WHERE key = $1", s.Table)
	err := s.DB.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return payload, err
}

// Save upserts value under key.
func (s *PostgresStorage) Save(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, s.Table)
	_, err := s.DB.ExecContext(ctx, query, key, value)
	return err
}

// Delete removes key.
func (s *PostgresStorage) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE key = $1", s.Table)
	_, err := s.DB.ExecContext(ctx, query, key)
	return err
}

func (s *PostgresStorage) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.Timeout)
}

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)?$`)

func validPostgresTable(name string) bool {
	return tableNamePattern.MatchString(name)
}
