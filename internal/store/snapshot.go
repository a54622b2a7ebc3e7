package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xonecas/outline/internal/symbol"
)

const snapshotColumns = "id, path, hash, provider, count, created"

func scanSnapshot(row interface{ Scan(...any) error }) (Snapshot, error) {
	var snap Snapshot
	var created int64
	if err := row.Scan(&snap.ID, &snap.Path, &snap.Hash, &snap.Provider, &snap.Count, &created); err != nil {
		return Snapshot{}, err
	}
	snap.Created = time.Unix(0, created)
	return snap, nil
}

// List returns snapshots newest first. An empty path lists every file.
// Safe to call on a nil receiver (returns nothing).
func (s *Store) List(path string) ([]Snapshot, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "SELECT " + snapshotColumns + " FROM snapshots"
	var args []any
	if path != "" {
		query += " WHERE path = ?"
		args = append(args, path)
	}
	query += " ORDER BY created DESC, id DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Latest returns the newest snapshot of path whose content hash is hash.
func (s *Store) Latest(path, hash string) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := scanSnapshot(s.db.QueryRow(
		"SELECT "+snapshotColumns+" FROM snapshots WHERE path = ? AND hash = ? ORDER BY created DESC, id DESC LIMIT 1",
		path, hash,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return snap, err
}

// Load rebuilds the catalog recorded in snapshot id, in its original order.
func (s *Store) Load(id int64) (*symbol.Catalog, error) {
	if s == nil {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var path string
	err := s.db.QueryRow("SELECT path FROM snapshots WHERE id = ?", id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT name, kind, container_name, container_kind, start_offset, end_offset, icon
		 FROM snapshot_symbols WHERE snapshot_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var syms []symbol.Symbol
	for rows.Next() {
		var sym symbol.Symbol
		var kind, containerKind string
		if err := rows.Scan(&sym.Name, &kind, &sym.ContainerName, &containerKind,
			&sym.Range.Start, &sym.Range.End, &sym.Icon); err != nil {
			return nil, err
		}
		sym.Kind = symbol.Kind(kind)
		sym.ContainerKind = symbol.Kind(containerKind)
		syms = append(syms, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return symbol.NewCatalog(path, syms), nil
}
