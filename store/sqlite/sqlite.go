// Package sqlite stores category payloads in a SQLite database file.
//
// Several processes on one host may share the file; SQLite serialises the
// conditional UPDATE that implements compare-and-set.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/unkn0wn-root/idgen/idset"
	"github.com/unkn0wn-root/idgen/store"
)

//go:embed schema.sql
var schemaSQL string

var ErrNotOpen = errors.New("sqlite store: not open")

// Store is a store.VersionedStore backed by SQLite.
type Store struct {
	path        string
	busyTimeout time.Duration

	mu sync.RWMutex
	db *sql.DB
}

var _ store.VersionedStore = (*Store)(nil)

type Config struct {
	// Path of the database file; created if missing. ":memory:" is accepted.
	Path string
	// BusyTimeout bounds waits on a lock held by another connection or
	// process. Default 5s.
	BusyTimeout time.Duration
}

func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite store: empty path")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	return &Store{path: cfg.Path, busyTimeout: cfg.BusyTimeout}, nil
}

func (s *Store) Name() string { return "sqlite" }

// Open opens the database, applies pragmas and creates the schema.
// It is idempotent.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return store.Wrap("open", "", fmt.Errorf("open database: %w", err))
	}
	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return store.Wrap("open", "", fmt.Errorf("connect to database: %w", err))
	}
	if err := s.applyPragmas(ctx, db); err != nil {
		db.Close()
		return store.Wrap("open", "", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return store.Wrap("open", "", fmt.Errorf("apply schema: %w", err))
	}
	s.db = db
	return nil
}

func (s *Store) applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotOpen
	}
	return s.db, nil
}

func (s *Store) Get(ctx context.Context, cat idset.Category) (store.Blob, error) {
	db, err := s.conn()
	if err != nil {
		return store.Blob{}, store.Wrap("get", cat, err)
	}
	var (
		ver     int64
		payload []byte
	)
	err = db.QueryRowContext(ctx,
		`SELECT version, payload FROM categories WHERE name = ?`, cat.Name(),
	).Scan(&ver, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Blob{}, store.ErrNotFound
	}
	if err != nil {
		return store.Blob{}, store.Wrap("get", cat, err)
	}
	return store.Blob{Version: store.Version(ver), Payload: payload}, nil
}

func (s *Store) Set(ctx context.Context, cat idset.Category, expected store.Version, payload []byte) (store.Version, error) {
	db, err := s.conn()
	if err != nil {
		return 0, store.Wrap("set", cat, err)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE categories
		SET version = version + 1, payload = ?, updated_at = ?
		WHERE name = ? AND version = ?
	`, nonNil(payload), time.Now().UnixMilli(), cat.Name(), int64(expected))
	if err != nil {
		return 0, store.Wrap("set", cat, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Wrap("set", cat, err)
	}
	if n == 1 {
		return expected + 1, nil
	}

	// nothing matched: either the row is gone or another writer moved it on
	var actual int64
	err = db.QueryRowContext(ctx,
		`SELECT version FROM categories WHERE name = ?`, cat.Name(),
	).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, store.Wrap("set", cat, err)
	}
	return 0, &store.ConflictError{Category: cat, Expected: expected, Actual: store.Version(actual)}
}

func (s *Store) Create(ctx context.Context, cat idset.Category, payload []byte) (store.Version, error) {
	db, err := s.conn()
	if err != nil {
		return 0, store.Wrap("create", cat, err)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO categories (name, version, payload, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, cat.Name(), nonNil(payload), time.Now().UnixMilli())
	if err != nil {
		return 0, store.Wrap("create", cat, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Wrap("create", cat, err)
	}
	if n == 0 {
		return 0, store.ErrExists
	}
	return 1, nil
}

// Delete removes a category and its inventory.
func (s *Store) Delete(ctx context.Context, cat idset.Category) error {
	db, err := s.conn()
	if err != nil {
		return store.Wrap("delete", cat, err)
	}
	_, err = db.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, cat.Name())
	return store.Wrap("delete", cat, err)
}

// Categories lists every stored category in name order.
func (s *Store) Categories(ctx context.Context) ([]idset.Category, error) {
	db, err := s.conn()
	if err != nil {
		return nil, store.Wrap("list", "", err)
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, store.Wrap("list", "", err)
	}
	defer rows.Close()

	var out []idset.Category
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, store.Wrap("list", "", err)
		}
		out = append(out, idset.Category(name))
	}
	return out, store.Wrap("list", "", rows.Err())
}

// Close closes the database. Safe to call multiple times.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// nonNil keeps the NOT NULL payload column satisfied for empty inventories.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
