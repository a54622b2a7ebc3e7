// Package store records symbol catalogs in SQLite so outlines can be replayed
// for files whose content has not changed.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/xonecas/outline/internal/symbol"
)

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = errors.New("store: snapshot not found")

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	path      TEXT NOT NULL,
	hash      TEXT NOT NULL,
	provider  TEXT NOT NULL,
	count     INTEGER NOT NULL,
	created   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_symbols (
	snapshot_id     INTEGER NOT NULL,
	seq             INTEGER NOT NULL,
	name            TEXT NOT NULL,
	kind            TEXT NOT NULL,
	container_name  TEXT NOT NULL,
	container_kind  TEXT NOT NULL,
	start_offset    INTEGER NOT NULL,
	end_offset      INTEGER NOT NULL,
	icon            TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_path ON snapshots(path, created);
CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created);
`

// Store is a SQLite-backed snapshot store.
type Store struct {
	mu        sync.Mutex
	db        *sql.DB
	retention time.Duration
}

// Snapshot describes one recorded catalog.
type Snapshot struct {
	ID       int64
	Path     string
	Hash     string
	Provider string
	Count    int
	Created  time.Time
}

// Open creates or opens a store at the given path. Snapshots older than
// retention are purged on open; zero keeps everything.
func Open(dbPath string, retention time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	// SQLite pragmas for performance.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{db: db, retention: retention}
	s.purgeStale()
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// HashContent returns the content hash snapshots are keyed by.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save records cat under its path. hash identifies the file content the
// offsets refer to. No-op on nil receiver.
func (s *Store) Save(hash, provider string, cat *symbol.Catalog) (int64, error) {
	if s == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.Exec(
		"INSERT INTO snapshots (path, hash, provider, count, created) VALUES (?, ?, ?, ?, ?)",
		cat.Path(), hash, provider, cat.Len(), time.Now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO snapshot_symbols
		(snapshot_id, seq, name, kind, container_name, container_kind, start_offset, end_offset, icon)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i := 0; i < cat.Len(); i++ {
		sym := cat.At(i)
		if _, err := stmt.Exec(id, i, sym.Name, string(sym.Kind), sym.ContainerName,
			string(sym.ContainerKind), sym.Range.Start, sym.Range.End, sym.Icon); err != nil {
			return 0, fmt.Errorf("insert symbol %q: %w", sym.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	log.Debug().Int64("id", id).Str("file", cat.Path()).Int("count", cat.Len()).Msg("store: snapshot saved")
	return id, nil
}

// Delete removes a snapshot and its symbols.
func (s *Store) Delete(id int64) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.Exec("DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if _, err := tx.Exec("DELETE FROM snapshot_symbols WHERE snapshot_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// purgeStale removes snapshots older than the retention window.
func (s *Store) purgeStale() {
	if s.retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.retention).UnixNano()
	if _, err := s.db.Exec(
		"DELETE FROM snapshot_symbols WHERE snapshot_id IN (SELECT id FROM snapshots WHERE created <= ?)",
		cutoff,
	); err != nil {
		log.Warn().Err(err).Msg("failed to purge stale snapshot symbols")
		return
	}
	res, err := s.db.Exec("DELETE FROM snapshots WHERE created <= ?", cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("failed to purge stale snapshots")
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Info().Int64("deleted", n).Msg("purged stale snapshots")
	}
}
