// Package index implements the durable fingerprint → archive-path store.
// It is the only component that mutates shared state across workers; all
// writes happen from the organizer's single control-flow goroutine.
package index

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"photox/internal/hasher"
	"photox/internal/photoerr"
)

// Store is a crash-safe key-value mapping of fingerprint to archive path,
// backed by a single SQLite table with a composite (size, digest) primary
// key. Each Insert is its own transaction, so a completed insert is
// durable before the corresponding move is ever reported as successful.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the index database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS fingerprints (
		size INTEGER NOT NULL,
		digest TEXT NOT NULL,
		archive_path TEXT NOT NULL,
		full INTEGER NOT NULL,
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (size, digest)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the archive-relative path for fp, or ("", false, nil) if
// no entry exists under fp's exact (size, digest) key.
func (s *Store) Lookup(fp hasher.Fingerprint) (string, bool, error) {
	row := s.db.QueryRow(
		`SELECT archive_path FROM fingerprints WHERE size = ? AND digest = ?`,
		fp.Size, digestHex(fp),
	)
	var path string
	err := row.Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return path, true, nil
}

// Entry is one indexed fingerprint, with enough information to decide
// whether it still needs promoting.
type Entry struct {
	Digest      [16]byte
	ArchivePath string
	Full        bool
}

// LookupBySize returns every entry currently indexed at size, regardless
// of digest — used to find same-size collision candidates that must be
// promoted to full-content fingerprints before a disposition decision,
// per the tail-sampling soundness rule.
func (s *Store) LookupBySize(size int64) ([]Entry, error) {
	rows, err := s.db.Query(`SELECT digest, archive_path, full FROM fingerprints WHERE size = ?`, size)
	if err != nil {
		return nil, fmt.Errorf("lookup by size: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var digestHexStr, path string
		var full int
		if err := rows.Scan(&digestHexStr, &path, &full); err != nil {
			return nil, err
		}
		digest, err := decodeDigest(digestHexStr)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Digest: digest, ArchivePath: path, Full: full != 0})
	}
	return entries, rows.Err()
}

// Insert commits a new fingerprint → archivePath mapping. If fp already
// maps to a different path, it returns a *photoerr.Error of kind
// IndexConflict and leaves the existing mapping untouched.
func (s *Store) Insert(fp hasher.Fingerprint, archivePath string) error {
	existing, ok, err := s.Lookup(fp)
	if err != nil {
		return err
	}
	if ok {
		if existing == archivePath {
			return nil
		}
		return photoerr.New(photoerr.IndexConflict, archivePath,
			fmt.Sprintf("fingerprint already maps to %q", existing))
	}

	full := 0
	if fp.Full {
		full = 1
	}
	_, err = s.db.Exec(
		`INSERT INTO fingerprints (size, digest, archive_path, full, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		fp.Size, digestHex(fp), archivePath, full, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert fingerprint: %w", err)
	}
	return nil
}

// Remove deletes the entry for fp, used when promoting a Tail-keyed entry
// to its Full digest (the old key must go).
func (s *Store) Remove(fp hasher.Fingerprint) error {
	_, err := s.db.Exec(`DELETE FROM fingerprints WHERE size = ? AND digest = ?`, fp.Size, digestHex(fp))
	return err
}

// RemoveByArchivePath deletes whatever entry currently points at
// archivePath, used to purge stale entries whose file has disappeared
// from the archive since it was indexed.
func (s *Store) RemoveByArchivePath(archivePath string) error {
	_, err := s.db.Exec(`DELETE FROM fingerprints WHERE archive_path = ?`, archivePath)
	return err
}

// AllPaths returns every archive path currently indexed, used by the
// organizer's BuildIndex to detect entries whose file has since
// disappeared from the archive.
func (s *Store) AllPaths() ([]string, error) {
	rows, err := s.db.Query(`SELECT archive_path FROM fingerprints`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func digestHex(fp hasher.Fingerprint) string {
	return hex.EncodeToString(fp.Digest[:])
}

func decodeDigest(s string) ([16]byte, error) {
	var out [16]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 16 {
		return out, fmt.Errorf("malformed digest %q", s)
	}
	copy(out[:], b)
	return out, nil
}
