package organizer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"photox/internal/config"
	"photox/internal/grouper"
	"photox/internal/hasher"
	"photox/internal/index"
	"photox/internal/metaprobe"
	"photox/internal/report"
)

func newTestOrganizer(t *testing.T, cfg config.Config) (*Organizer, *report.Sink) {
	t.Helper()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	idx, err := index.Open(cfg.IndexPath())
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	sink, err := report.New(cfg.ReportDir("test"), cfg.RunHistoryPath(), "test", cfg.DryRun)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	t.Cleanup(func() { sink.Close() })

	h := hasher.New(2, cfg.HashThresholdBytes())
	prober := metaprobe.New(cfg.ExiftoolChunkSize, "photox-test-tool-not-installed")
	o := New(cfg, idx, h, prober, sink, nil)
	return o, sink
}

func newTestConfig(t *testing.T) config.Config {
	t.Helper()
	srcDir := t.TempDir()
	destDir := t.TempDir()
	cfg, err := config.New(srcDir, destDir)
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return cfg
}

func write(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

// hashPrimary stands in for the hasher.Result that Run's batched HashMany
// call would have already produced for this group's primary.
func hashPrimary(t *testing.T, o *Organizer, path string) hasher.Result {
	t.Helper()
	fp, err := o.hsh.Fingerprint(path)
	if err != nil {
		t.Fatalf("fingerprint %q: %v", path, err)
	}
	return hasher.Result{Path: path, Fingerprint: fp}
}

// S1 — Live Photo placement.
func TestScenarioLivePhotoPlacement(t *testing.T) {
	cfg := newTestConfig(t)
	o, sink := newTestOrganizer(t, cfg)

	heic := filepath.Join(cfg.Source, "IMG_0001.HEIC")
	mov := filepath.Join(cfg.Source, "IMG_0001.MOV")
	aae := filepath.Join(cfg.Source, "IMG_0001.AAE")
	write(t, heic, "heic-bytes")
	write(t, mov, "mov-bytes")
	write(t, aae, "aae-bytes")

	groups, orphans, err := grouper.Walk(cfg.Source)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(orphans) != 0 || len(groups) != 1 {
		t.Fatalf("unexpected grouping: groups=%d orphans=%d", len(groups), len(orphans))
	}
	groups[0].CaptureTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	if err := o.processGroup(&groups[0], hashPrimary(t, o, groups[0].Primary.Path)); err != nil {
		t.Fatalf("processGroup: %v", err)
	}

	monthDir := filepath.Join(cfg.Dest, "2024", "03")
	for _, name := range []string{"IMG_0001.HEIC", "IMG_0001.MOV", "IMG_0001.AAE"} {
		if _, err := os.Stat(filepath.Join(monthDir, name)); err != nil {
			t.Errorf("expected %s under %s: %v", name, monthDir, err)
		}
	}
	if sink.Counts().Moved != 3 {
		t.Errorf("Moved count = %d, want 3", sink.Counts().Moved)
	}
}

// S2 — Duplicate against archive.
func TestScenarioDuplicateAgainstArchive(t *testing.T) {
	cfg := newTestConfig(t)
	o, sink := newTestOrganizer(t, cfg)

	existing := filepath.Join(cfg.Dest, "2024", "03", "IMG_0001.HEIC")
	write(t, existing, "same-content")
	fp, err := o.hsh.Fingerprint(existing)
	if err != nil {
		t.Fatalf("fingerprint existing: %v", err)
	}
	if err := o.idx.Insert(fp, "2024/03/IMG_0001.HEIC"); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	heic := filepath.Join(cfg.Source, "copy", "IMG_0001.HEIC")
	mov := filepath.Join(cfg.Source, "copy", "IMG_0001.MOV")
	write(t, heic, "same-content")
	write(t, mov, "different-video-bytes")

	groups, _, err := grouper.Walk(filepath.Join(cfg.Source, "copy"))
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	groups[0].CaptureTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	if err := o.processGroup(&groups[0], hashPrimary(t, o, groups[0].Primary.Path)); err != nil {
		t.Fatalf("processGroup: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.DupDir, "copy", "IMG_0001.HEIC")); err != nil {
		t.Errorf("expected duplicate HEIC in dup dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.DupDir, "copy", "IMG_0001.MOV")); err != nil {
		t.Errorf("expected duplicate MOV in dup dir: %v", err)
	}
	if sink.Counts().Duplicate != 2 {
		t.Errorf("Duplicate count = %d, want 2", sink.Counts().Duplicate)
	}

	// Archive and index must be unchanged.
	if _, err := os.Stat(existing); err != nil {
		t.Errorf("existing archive file should still exist: %v", err)
	}
	path, hit, err := o.idx.Lookup(fp)
	if err != nil || !hit || path != "2024/03/IMG_0001.HEIC" {
		t.Errorf("index entry should be unchanged, got path=%q hit=%v err=%v", path, hit, err)
	}
}

// S3 — Name collision (different content, same capture month).
func TestScenarioNameCollisionDifferentContent(t *testing.T) {
	cfg := newTestConfig(t)
	o, sink := newTestOrganizer(t, cfg)

	existing := filepath.Join(cfg.Dest, "2024", "03", "IMG_0001.HEIC")
	write(t, existing, "archive-content")

	src := filepath.Join(cfg.Source, "IMG_0001.HEIC")
	write(t, src, "different-content-entirely")

	groups, _, err := grouper.Walk(cfg.Source)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	groups[0].CaptureTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	if err := o.processGroup(&groups[0], hashPrimary(t, o, groups[0].Primary.Path)); err != nil {
		t.Fatalf("processGroup: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.Dest, "2024", "03", "IMG_0001_1.HEIC")); err != nil {
		t.Errorf("expected collision-suffixed placement: %v", err)
	}
	if sink.Counts().Moved != 1 {
		t.Errorf("Moved count = %d, want 1", sink.Counts().Moved)
	}
}

// S5 — Unreadable EXIF / no usable timestamp.
func TestScenarioUnrecognizedNoTimestamp(t *testing.T) {
	cfg := newTestConfig(t)
	o, sink := newTestOrganizer(t, cfg)

	src := filepath.Join(cfg.Source, "garbage.jpg")
	write(t, src, "not a real jpeg")

	groups, _, err := grouper.Walk(cfg.Source)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	// CaptureTime left zero, simulating a probe that found nothing usable.

	if err := o.processGroup(&groups[0], hashPrimary(t, o, groups[0].Primary.Path)); err != nil {
		t.Fatalf("processGroup: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.SecondCheckDir, "garbage.jpg")); err != nil {
		t.Errorf("expected file under second-check dir: %v", err)
	}
	if sink.Counts().Unrecognized != 1 {
		t.Errorf("Unrecognized count = %d, want 1", sink.Counts().Unrecognized)
	}
}

// S6 — Intra-archive duplicate on build-index.
func TestScenarioBuildIndexIntraArchiveDuplicate(t *testing.T) {
	cfg := newTestConfig(t)
	o, sink := newTestOrganizer(t, cfg)

	a := filepath.Join(cfg.Dest, "2024", "03", "A.JPG")
	b := filepath.Join(cfg.Dest, "2024", "03", "B.JPG")
	write(t, a, "identical-content")
	write(t, b, "identical-content")

	if err := o.BuildIndex(); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	if _, err := os.Stat(a); err != nil {
		t.Errorf("A.JPG should remain canonical: %v", err)
	}
	if _, err := os.Stat(b); !os.IsNotExist(err) {
		t.Errorf("B.JPG should have been moved out of the archive")
	}
	if _, err := os.Stat(filepath.Join(cfg.DupDir, "2024", "03", "B.JPG")); err != nil {
		t.Errorf("expected B.JPG under dup dir: %v", err)
	}
	if sink.Counts().DestDuplicate != 1 {
		t.Errorf("DestDuplicate count = %d, want 1", sink.Counts().DestDuplicate)
	}
}

func TestDryRunLeavesFilesystemUntouched(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.DryRun = true
	o, sink := newTestOrganizer(t, cfg)

	src := filepath.Join(cfg.Source, "IMG_0002.HEIC")
	write(t, src, "content")

	groups, _, err := grouper.Walk(cfg.Source)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	groups[0].CaptureTime = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	if err := o.processGroup(&groups[0], hashPrimary(t, o, groups[0].Primary.Path)); err != nil {
		t.Fatalf("processGroup: %v", err)
	}

	if _, err := os.Stat(src); err != nil {
		t.Errorf("dry-run should not move the source file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Dest, "2024", "05", "IMG_0002.HEIC")); !os.IsNotExist(err) {
		t.Errorf("dry-run should not create the destination file")
	}
	if sink.Counts().Moved != 1 {
		t.Errorf("dry-run should still report a Moved row, got %d", sink.Counts().Moved)
	}
	path, hit, err := o.idx.Lookup(groups[0].Fingerprint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit {
		t.Errorf("dry-run must not commit an index entry, found %q", path)
	}
}
