package organizer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"photox/internal/applog"
	"photox/internal/hasher"
	"photox/internal/pathutil"
	"photox/internal/photoerr"
)

// BuildIndex performs a full scan of the archive directory, populating the
// index: pre-existing entries pointing at still-present files are
// retained, stale entries (file absent) are purged, and within-archive
// duplicates are resolved by keeping the already-indexed file (the first
// by lexical order among files new to the index) as canonical and
// quarantining the rest, reported as DestDuplicate.
func (o *Organizer) BuildIndex() error {
	if err := o.purgeStaleEntries(); err != nil {
		return fmt.Errorf("purge stale index entries: %w", err)
	}

	var archivePaths []string
	err := filepath.Walk(o.cfg.Dest, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path == o.cfg.DataDir {
				return filepath.SkipDir
			}
			return nil
		}
		if pathutil.Classify(path) == pathutil.Unknown {
			return nil
		}
		archivePaths = append(archivePaths, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk archive: %w", err)
	}
	sort.Strings(archivePaths)

	// Hash every archive file across the worker pool before the
	// sequential index-mutating loop below, the same split Run makes
	// between HashMany and per-group dispositions.
	hashed := o.hsh.HashMany(archivePaths)

	for i, absPath := range archivePaths {
		if err := o.indexArchiveFile(absPath, hashed[i]); err != nil {
			return err
		}
	}
	return nil
}

func (o *Organizer) purgeStaleEntries() error {
	paths, err := o.idx.AllPaths()
	if err != nil {
		return err
	}
	for _, rel := range paths {
		abs := filepath.Join(o.cfg.Dest, rel)
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			if err := o.idx.RemoveByArchivePath(rel); err != nil {
				o.log.Warn("failed to purge stale index entry", applog.String("path", abs), applog.Err(err))
			}
		}
	}
	return nil
}

func (o *Organizer) indexArchiveFile(absPath string, hashed hasher.Result) error {
	rel, err := filepath.Rel(o.cfg.Dest, absPath)
	if err != nil {
		return fmt.Errorf("compute archive-relative path: %w", err)
	}
	if hashed.Err != nil {
		return o.sink.Error(absPath, photoerr.HashReadFailed, hashed.Err.Error())
	}

	fp, err := o.resolveFingerprint(absPath, hashed.Fingerprint)
	if err != nil {
		return o.sink.Error(absPath, photoerr.HashReadFailed, err.Error())
	}

	existingPath, hit, err := o.idx.Lookup(fp)
	if err != nil {
		return fmt.Errorf("index lookup: %w", err)
	}
	if !hit {
		return o.idx.Insert(fp, rel)
	}
	if existingPath == rel {
		return nil
	}

	// Intra-archive duplicate: keep the entry already present, quarantine
	// this one under the duplicate directory at its archive-relative path.
	// Within one pass the sorted walk makes the kept entry the lexically
	// first copy; an entry retained from an earlier index is kept even when
	// this file sorts before it.
	dst, err := pathutil.UniqueDestination(filepath.Join(o.cfg.DupDir, filepath.Dir(rel)), filepath.Base(absPath))
	if err != nil {
		return o.sink.Error(absPath, photoerr.MoveFailed, err.Error())
	}
	if err := pathutil.Place(absPath, dst, o.cfg.DryRun); err != nil {
		return o.sink.Error(absPath, photoerr.MoveFailed, err.Error())
	}
	return o.sink.DestDuplicate(absPath, filepath.Join(o.cfg.Dest, existingPath))
}
