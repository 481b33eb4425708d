// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pypi reads the package-index snapshot: a sqlite database mapping
// normalized package names to per-release metadata (version, declared
// requirements, interpreter requirement, checksum, source location).
package pypi

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // database/sql driver
)

// Release is one release of a package, as recorded in the snapshot.
type Release struct {
	Name           string
	Version        string
	RequiresDist   []string
	RequiresPython string
	SHA256         string // lowercase hex
	Path           string
	IsSdist        bool
}

// Index is the query surface the snapshot provides.
type Index interface {
	Releases(ctx context.Context, name string) ([]Release, error)
	NamesWithPrefix(ctx context.Context, prefix string) ([]string, error)
	Counts(ctx context.Context) (packages, versions int, err error)
}

// Store is a read-only handle on the snapshot database.
type Store struct {
	db *sql.DB
}

var _ Index = (*Store)(nil)

// OpenStore opens the snapshot database read-only.  The file must already
// exist; fetching it is a separate, explicit step.
func OpenStore(dbPath string) (*Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("pypi.OpenStore: no index snapshot at %q: %w", dbPath, err)
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("pypi.OpenStore: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Releases returns every release row for the exact (normalized) name, in
// insertion order; for a name with several uploads of the same version the
// caller is expected to let the newest row win.
func (s *Store) Releases(ctx context.Context, name string) ([]Release, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, requires_dist, requires_python, sha256, path, is_sdist
		 FROM releases WHERE name = ? ORDER BY rowid`,
		name)
	if err != nil {
		return nil, fmt.Errorf("pypi: releases of %q: %w", name, err)
	}
	defer rows.Close()

	var ret []Release
	for rows.Next() {
		var (
			rel          Release
			requiresDist sql.NullString
			requiresPy   sql.NullString
			sha          []byte
		)
		if err := rows.Scan(&rel.Version, &requiresDist, &requiresPy, &sha, &rel.Path, &rel.IsSdist); err != nil {
			return nil, fmt.Errorf("pypi: releases of %q: %w", name, err)
		}
		rel.Name = name
		rel.RequiresPython = requiresPy.String
		rel.SHA256 = hex.EncodeToString(sha)
		if requiresDist.Valid && requiresDist.String != "" {
			if err := json.Unmarshal([]byte(requiresDist.String), &rel.RequiresDist); err != nil {
				return nil, fmt.Errorf("pypi: releases of %q: version %q: requires_dist: %w",
					name, rel.Version, err)
			}
		}
		ret = append(ret, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pypi: releases of %q: %w", name, err)
	}
	return ret, nil
}

// NamesWithPrefix returns the distinct normalized package names starting
// with prefix, in ascending order.
func (s *Store) NamesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT name FROM releases WHERE name LIKE ? ESCAPE '\' ORDER BY name`,
		likeEscape(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("pypi: names with prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var ret []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("pypi: names with prefix %q: %w", prefix, err)
		}
		ret = append(ret, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pypi: names with prefix %q: %w", prefix, err)
	}
	return ret, nil
}

func likeEscape(str string) string {
	var ret []byte
	for i := 0; i < len(str); i++ {
		switch str[i] {
		case '%', '_', '\\':
			ret = append(ret, '\\')
		}
		ret = append(ret, str[i])
	}
	return string(ret)
}

// Counts returns the number of distinct packages and the total number of
// release rows in the snapshot.
func (s *Store) Counts(ctx context.Context) (packages, versions int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT name), COUNT(*) FROM releases`)
	if err := row.Scan(&packages, &versions); err != nil {
		return 0, 0, fmt.Errorf("pypi: counts: %w", err)
	}
	return packages, versions, nil
}
