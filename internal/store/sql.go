package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lawnchairsociety/questkeeper/internal/logger"
)

// SQLStore keeps blobs in a quest_state table over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// OpenSQLite opens or creates the SQLite database at path.
func OpenSQLite(path string) (*SQLStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dialect := NewDialect(DialectSQLite)
	db, err := sql.Open(dialect.DriverName(), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, dialect)
}

// OpenPostgres connects to PostgreSQL with cfg.
func OpenPostgres(cfg PostgresConfig) (*SQLStore, error) {
	dialect := NewDialect(DialectPostgres)
	db, err := sql.Open(dialect.DriverName(), cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres %s@%s:%d/%s: %w",
			cfg.User, cfg.Host, cfg.Port, cfg.Database, err)
	}

	return newSQLStore(db, dialect)
}

func newSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init statement failed: %w\nSQL: %s", err, stmt)
		}
	}

	s := &SQLStore{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// migrate creates the schema if it doesn't exist.
func (s *SQLStore) migrate() error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS quest_state (
			slot_key TEXT PRIMARY KEY,
			data %s NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, s.dialect.BlobType())
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("migration failed: %w\nSQL: %s", err, stmt)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		s.qb.Build(`SELECT data FROM quest_state WHERE slot_key = ?`), key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, data []byte) error {
	if err := s.Put(ctx, Entry{Key: key, Data: data, UpdatedAt: time.Now()}); err != nil {
		return err
	}
	logger.Debug("Stored quest state", "key", key, "bytes", len(data), "driver", s.dialect.DriverName())
	return nil
}

// Entry is one row of the quest_state table.
type Entry struct {
	Key       string
	Data      []byte
	UpdatedAt time.Time
}

// Entries returns every stored row ordered by key.
func (s *SQLStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot_key, data, updated_at FROM quest_state ORDER BY slot_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list quest state: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Data, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quest state: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Put writes a row keeping its original timestamp. Used when copying between databases.
func (s *SQLStore) Put(ctx context.Context, e Entry) error {
	query := s.qb.Build(`INSERT INTO quest_state (slot_key, data, updated_at) VALUES (?, ?, ?)`) +
		s.dialect.UpsertClause("slot_key", "data", "updated_at")
	if _, err := s.db.ExecContext(ctx, query, e.Key, e.Data, e.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.Key, err)
	}
	return nil
}

// Insert writes a row only if its key is not stored yet. It reports false,
// without error, when the key already exists.
func (s *SQLStore) Insert(ctx context.Context, e Entry) (bool, error) {
	query := s.qb.Build(`INSERT INTO quest_state (slot_key, data, updated_at) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, e.Key, e.Data, e.UpdatedAt.UTC()); err != nil {
		if s.dialect.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert %s: %w", e.Key, err)
	}
	return true, nil
}

// Dialect returns the store's SQL dialect.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// DB returns the underlying sql.DB for advanced operations.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
