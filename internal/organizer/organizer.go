// Package organizer is the pipeline orchestrator: for each group the
// grouper produces, it resolves a capture time, fingerprints the primary,
// consults the index, performs the transactional placement, and emits
// report rows — the only component that mutates the index or the archive.
package organizer

import (
	"fmt"
	"path/filepath"
	"time"

	"photox/internal/applog"
	"photox/internal/config"
	"photox/internal/grouper"
	"photox/internal/hasher"
	"photox/internal/index"
	"photox/internal/metaprobe"
	"photox/internal/pathutil"
	"photox/internal/photoerr"
	"photox/internal/report"
)

// Organizer ties the index, hasher, prober, and report sink together into
// the per-group state machine of the core pipeline.
type Organizer struct {
	cfg    config.Config
	idx    *index.Store
	hsh    *hasher.Hasher
	prober *metaprobe.Prober
	sink   *report.Sink
	log    *applog.Logger

	// OnProgress, if set, is called once per group or orphan sidecar
	// processed by Run, for driving a progress bar.
	OnProgress func()
}

func New(cfg config.Config, idx *index.Store, hsh *hasher.Hasher, prober *metaprobe.Prober, sink *report.Sink, log *applog.Logger) *Organizer {
	if log == nil {
		log = applog.Nop()
	}
	return &Organizer{cfg: cfg, idx: idx, hsh: hsh, prober: prober, sink: sink, log: log}
}

// Run processes every group and orphan sidecar the grouper found, in
// grouper order, so that "first wins" duplicate tie-breaks are stable.
// A non-nil return means an unexpected, non-recoverable failure (index or
// report I/O) stopped the run early; per-file problems are instead
// recorded as report rows and do not stop the run.
func (o *Organizer) Run(groups []grouper.MediaGroup, orphans []grouper.MediaFile) error {
	for _, orphan := range orphans {
		if err := o.placeIntoQuarantine(orphan, o.cfg.OrphanAAEDir, o.sink.OrphanSidecar); err != nil {
			return err
		}
		o.tick()
	}

	primaryPaths := make([]string, len(groups))
	for i, g := range groups {
		primaryPaths[i] = g.Primary.Path
	}
	probed := o.prober.Probe(primaryPaths)
	captureTimes := make(map[string]time.Time, len(probed))
	for _, r := range probed {
		captureTimes[r.Path] = r.CaptureTime
	}

	// Fingerprinting is the other batched, parallel stage: every primary
	// is hashed across the worker pool before the sequential per-group
	// loop below ever touches the index, the same split Probe already
	// makes between the batched metadata stage and per-group dispositions.
	hashed := o.hsh.HashMany(primaryPaths)

	for i := range groups {
		g := groups[i]
		g.CaptureTime = captureTimes[g.Primary.Path]
		if err := o.processGroup(&g, hashed[i]); err != nil {
			return err
		}
		o.tick()
	}
	return nil
}

func (o *Organizer) tick() {
	if o.OnProgress != nil {
		o.OnProgress()
	}
}

// processGroup takes the primary's fingerprint already computed by Run's
// batched HashMany call (or any equivalent precomputed hasher.Result)
// rather than hashing it itself.
func (o *Organizer) processGroup(g *grouper.MediaGroup, hashed hasher.Result) error {
	if g.CaptureTime.IsZero() {
		return o.quarantineGroup(g, o.cfg.SecondCheckDir, o.sink.Unrecognized)
	}
	if hashed.Err != nil {
		return o.errorGroup(g, photoerr.HashReadFailed, hashed.Err.Error())
	}

	fp, err := o.resolveFingerprint(g.Primary.Path, hashed.Fingerprint)
	if err != nil {
		return o.errorGroup(g, photoerr.HashReadFailed, err.Error())
	}
	g.Fingerprint = fp

	existingPath, hit, err := o.idx.Lookup(fp)
	if err != nil {
		return fmt.Errorf("index lookup: %w", err)
	}
	if hit {
		return o.quarantineGroupDuplicate(g, existingPath)
	}

	return o.placeGroup(g)
}

// resolveFingerprint takes fp, a file's already-computed initial
// fingerprint (tail-sampled or full), and promotes it — along with any
// same-size sibling entries still keyed by a Tail digest — to a
// full-content digest whenever a same-size entry already exists in the
// index. This is the only branch where a file may be read a second time,
// and it must run sequentially since it mutates the shared index.
func (o *Organizer) resolveFingerprint(path string, fp hasher.Fingerprint) (hasher.Fingerprint, error) {
	if fp.Full {
		return fp, nil
	}

	siblings, err := o.idx.LookupBySize(fp.Size)
	if err != nil {
		return hasher.Fingerprint{}, err
	}
	if len(siblings) == 0 {
		return fp, nil
	}

	promoted, err := o.hsh.Promote(path)
	if err != nil {
		return hasher.Fingerprint{}, err
	}
	for _, sibling := range siblings {
		o.promoteSibling(fp.Size, sibling)
	}
	return promoted, nil
}

func (o *Organizer) promoteSibling(size int64, sibling index.Entry) {
	if sibling.Full {
		return
	}
	absPath := filepath.Join(o.cfg.Dest, sibling.ArchivePath)
	full, err := o.hsh.Promote(absPath)
	if err != nil {
		o.log.Warn("failed to promote sibling fingerprint",
			applog.String("path", absPath), applog.Err(err))
		return
	}
	oldFP := hasher.Fingerprint{Size: size, Digest: sibling.Digest, Full: false}
	if err := o.idx.Remove(oldFP); err != nil {
		o.log.Warn("failed to remove stale tail entry", applog.String("path", absPath), applog.Err(err))
		return
	}
	if err := o.idx.Insert(full, sibling.ArchivePath); err != nil {
		o.log.Warn("failed to re-insert promoted sibling", applog.String("path", absPath), applog.Err(err))
	}
}

// placeGroup performs the Miss branch of §4.F: compute the archive
// destination from capture time, move the primary then every satellite,
// and commit the index before reporting Moved.
func (o *Organizer) placeGroup(g *grouper.MediaGroup) error {
	destDir := archiveMonthDir(o.cfg.Dest, g.CaptureTime)

	primaryDest, err := pathutil.UniqueDestination(destDir, filepath.Base(g.Primary.Path))
	if err != nil {
		return o.errorGroup(g, photoerr.TargetExists, err.Error())
	}
	if err := pathutil.Place(g.Primary.Path, primaryDest, o.cfg.DryRun); err != nil {
		return o.errorGroup(g, photoerr.MoveFailed, err.Error())
	}

	satDests := make([]string, len(g.Satellites))
	for i, sat := range g.Satellites {
		name := pathutil.Stem(primaryDest) + filepath.Ext(sat.Path)
		dest, err := pathutil.UniqueDestination(destDir, name)
		if err != nil {
			return o.errorGroup(g, photoerr.TargetExists, err.Error())
		}
		if err := pathutil.Place(sat.Path, dest, o.cfg.DryRun); err != nil {
			return o.errorGroup(g, photoerr.MoveFailed, err.Error())
		}
		satDests[i] = dest
	}

	if !o.cfg.DryRun {
		relArchive, err := filepath.Rel(o.cfg.Dest, primaryDest)
		if err != nil {
			return fmt.Errorf("compute archive-relative path: %w", err)
		}
		if err := o.idx.Insert(g.Fingerprint, relArchive); err != nil {
			// The group is already on disk and no rollback is attempted
			// for a placement that has begun; this is the Errored
			// terminal state, not a silent success.
			return o.errorGroup(g, photoerr.IndexConflict, err.Error())
		}
	}

	if err := o.sink.Moved(g.Primary.Path, primaryDest); err != nil {
		return err
	}
	for i, sat := range g.Satellites {
		if err := o.sink.Moved(sat.Path, satDests[i]); err != nil {
			return err
		}
	}
	return nil
}

func (o *Organizer) quarantineGroup(g *grouper.MediaGroup, quarantineDir string, emit func(src, dst string) error) error {
	for _, f := range g.AllFiles() {
		dst, err := o.quarantineDest(quarantineDir, f.Path)
		if err != nil {
			return o.errorGroup(g, photoerr.MoveFailed, err.Error())
		}
		if err := pathutil.Place(f.Path, dst, o.cfg.DryRun); err != nil {
			return o.errorGroup(g, photoerr.MoveFailed, err.Error())
		}
		if err := emit(f.Path, dst); err != nil {
			return err
		}
	}
	return nil
}

func (o *Organizer) quarantineGroupDuplicate(g *grouper.MediaGroup, existingPath string) error {
	for _, f := range g.AllFiles() {
		dst, err := o.quarantineDest(o.cfg.DupDir, f.Path)
		if err != nil {
			return o.errorGroup(g, photoerr.MoveFailed, err.Error())
		}
		if err := pathutil.Place(f.Path, dst, o.cfg.DryRun); err != nil {
			return o.errorGroup(g, photoerr.MoveFailed, err.Error())
		}
		if err := o.sink.Duplicate(f.Path, existingPath); err != nil {
			return err
		}
	}
	return nil
}

func (o *Organizer) placeIntoQuarantine(f grouper.MediaFile, quarantineDir string, emit func(src, dst string) error) error {
	dst, err := o.quarantineDest(quarantineDir, f.Path)
	if err != nil {
		return o.sink.Error(f.Path, photoerr.MoveFailed, err.Error())
	}
	if err := pathutil.Place(f.Path, dst, o.cfg.DryRun); err != nil {
		return o.sink.Error(f.Path, photoerr.MoveFailed, err.Error())
	}
	return emit(f.Path, dst)
}

func (o *Organizer) errorGroup(g *grouper.MediaGroup, kind photoerr.Kind, detail string) error {
	for _, f := range g.AllFiles() {
		if err := o.sink.Error(f.Path, kind, detail); err != nil {
			return err
		}
	}
	return nil
}

// quarantineDest preserves the file's path relative to the source root
// underneath quarantineDir, the way §6 specifies for the duplicate
// quarantine, renaming on collision via pathutil.
func (o *Organizer) quarantineDest(quarantineDir, path string) (string, error) {
	rel, err := filepath.Rel(o.cfg.Source, filepath.Dir(path))
	if err != nil {
		rel = "."
	}
	dir := filepath.Join(quarantineDir, rel)
	return pathutil.UniqueDestination(dir, filepath.Base(path))
}

func archiveMonthDir(destRoot string, captureTime time.Time) string {
	local := captureTime.Local()
	return filepath.Join(destRoot, fmt.Sprintf("%04d", local.Year()), fmt.Sprintf("%02d", int(local.Month())))
}
