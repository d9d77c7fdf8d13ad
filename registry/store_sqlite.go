package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteStoreSchema = `
CREATE TABLE IF NOT EXISTS tool_registrations (
	ref TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

const defaultSQLiteStoreDB = "toolweave.db"

// SQLiteStoreConfig configures the SQLite-backed registration store.
type SQLiteStoreConfig struct {
	DSN string
}

// SQLiteStore persists registrations in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultSQLitePath returns the default SQLite path for CLI storage.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("registry: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultStoreDir, defaultSQLiteStoreDB), nil
}

// NewSQLiteStore opens (or creates) a SQLite-backed registration store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("registry: sqlite store dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("registry: sqlite store open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registry: sqlite store set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteStoreSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registry: sqlite store create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// List returns all registrations in deterministic (ref-sorted) order.
func (s *SQLiteStore) List(ctx context.Context) ([]Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, errors.New("registry: sqlite store is nil")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT payload
FROM tool_registrations
ORDER BY ref ASC`)
	if err != nil {
		return nil, fmt.Errorf("registry: sqlite list registrations: %w", err)
	}
	defer rows.Close()

	var regs []Registration
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("registry: sqlite scan registration: %w", err)
		}
		reg, err := decodeRegistration(payload)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: sqlite registration rows: %w", err)
	}

	return regs, nil
}

// Get returns a registration by ref.
func (s *SQLiteStore) Get(ctx context.Context, ref string) (Registration, bool, error) {
	if err := ctx.Err(); err != nil {
		return Registration{}, false, err
	}
	if s == nil || s.db == nil {
		return Registration{}, false, errors.New("registry: sqlite store is nil")
	}

	row := s.db.QueryRowContext(ctx, `
SELECT payload
FROM tool_registrations
WHERE ref = ?`, ref)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Registration{}, false, nil
		}
		return Registration{}, false, fmt.Errorf("registry: sqlite get registration: %w", err)
	}

	reg, err := decodeRegistration(payload)
	if err != nil {
		return Registration{}, false, err
	}
	return reg, true, nil
}

// Upsert inserts or updates a registration by ref.
func (s *SQLiteStore) Upsert(ctx context.Context, reg Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("registry: sqlite store is nil")
	}
	if strings.TrimSpace(reg.Descriptor.Ref) == "" {
		return errEmptyRef
	}

	payload, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("registry: sqlite encode registration: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO tool_registrations (ref, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(ref) DO UPDATE SET
	payload = excluded.payload,
	updated_at = excluded.updated_at`,
		reg.Descriptor.Ref,
		payload,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("registry: sqlite upsert registration: %w", err)
	}
	return nil
}

// Delete removes a registration by ref. Deleting a missing ref is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("registry: sqlite store is nil")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM tool_registrations WHERE ref = ?`, ref); err != nil {
		return fmt.Errorf("registry: sqlite delete registration: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func decodeRegistration(payload []byte) (Registration, error) {
	var reg Registration
	if err := json.Unmarshal(payload, &reg); err != nil {
		return Registration{}, fmt.Errorf("registry: sqlite decode registration: %w", err)
	}
	return reg, nil
}

var _ Store = (*SQLiteStore)(nil)
