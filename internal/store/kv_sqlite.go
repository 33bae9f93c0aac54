package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sgurov/lockbox/migrations"
)

// sqliteKV is a [KV] backed by a single-table SQLite database. Each Set is
// one upsert statement, which SQLite applies atomically.
type sqliteKV struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewSQLiteKV opens (creating if needed) the SQLite database at path, runs
// the embedded migrations and returns the KV on top of it.
func NewSQLiteKV(path string) (KV, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %v", ErrPersistence, err)
	}

	if err = migrations.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate sqlite db: %v", ErrPersistence, err)
	}

	return NewSQLiteKVFromDB(db), nil
}

// NewSQLiteKVFromDB wraps an already-open database handle. Used by tests to
// inject sqlmock; callers remain responsible for closing db.
func NewSQLiteKVFromDB(db *sql.DB) KV {
	return &sqliteKV{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Has implements [KV].
func (s *sqliteKV) Has(ctx context.Context, key string) (bool, error) {
	query, args, err := s.builder.
		Select("1").
		From("kv").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: build has query: %v", ErrPersistence, err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: query key %s: %v", ErrPersistence, key, err)
	}
	return true, nil
}

// Get implements [KV].
func (s *sqliteKV) Get(ctx context.Context, key string, target any) error {
	query, args, err := s.builder.
		Select("value").
		From("kv").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build get query: %v", ErrPersistence, err)
	}

	var raw string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("%w: query key %s: %v", ErrPersistence, key, err)
	}

	if err = json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("%w: decode value for %s: %v", ErrPersistence, key, err)
	}
	return nil
}

// Set implements [KV].
func (s *sqliteKV) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode value for %s: %v", ErrPersistence, key, err)
	}

	query, args, err := s.builder.
		Insert("kv").
		Columns("key", "value").
		Values(key, string(raw)).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build set query: %v", ErrPersistence, err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: upsert key %s: %v", ErrPersistence, key, err)
	}
	return nil
}

// Delete implements [KV].
func (s *sqliteKV) Delete(ctx context.Context, key string) error {
	query, args, err := s.builder.
		Delete("kv").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build delete query: %v", ErrPersistence, err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: delete key %s: %v", ErrPersistence, key, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *sqliteKV) Close() error {
	return s.db.Close()
}
