package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vareview/internal/config"
)

// Store is a SQLite-backed key-value table.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open connects to the state database named by cfg, creating it on first use.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.StatePath())
}

// OpenPath connects to the SQLite database at path.
func OpenPath(path string) (*Store, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps per-connection pragmas in force and serializes
	// in-process transactions.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx = ensureContext(ctx)
	var value []byte
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(key) == "" {
		return errors.New("kvstore set: empty key")
	}
	if value == nil {
		value = []byte{}
	}
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, upsertSQL, key, value, timestamp())
		return err
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Update applies fn to key inside a single transaction. fn receives the
// current value and returns its replacement; a nil result deletes the key.
// fn must not call back into the Store.
func (s *Store) Update(ctx context.Context, key string, fn func(current []byte, found bool) ([]byte, error)) error {
	ctx = ensureContext(ctx)
	if fn == nil {
		return errors.New("kvstore update: nil function")
	}
	err := retryOnBusy(ctx, func() error {
		return s.updateOnce(ctx, key, fn)
	})
	if err != nil {
		return fmt.Errorf("update %q: %w", key, err)
	}
	return nil
}

func (s *Store) updateOnce(ctx context.Context, key string, fn func([]byte, bool) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current []byte
	found := true
	if err := tx.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&current); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		found = false
	}

	next, err := fn(current, found)
	if err != nil {
		return err
	}
	if next == nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
			return err
		}
	} else if _, err := tx.ExecContext(ctx, upsertSQL, key, next, timestamp()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetJSON decodes the value under key into dst.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

const upsertSQL = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
