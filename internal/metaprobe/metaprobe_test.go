package metaprobe

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseBatchOutputFallbackOrder(t *testing.T) {
	out := []byte(`[
		{"SourceFile": "/a.jpg", "CreateDate": "2024:03:15 10:00:00", "FileModifyDate": "2024:01:01 00:00:00"},
		{"SourceFile": "/b.jpg", "FileModifyDate": "2024:02:02 00:00:00"},
		{"SourceFile": "/c.jpg"}
	]`)
	results, ok := parseBatchOutput(out, []string{"/a.jpg", "/b.jpg", "/c.jpg"})
	if !ok {
		t.Fatal("expected batch output to parse")
	}

	wantA := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	if !results[0].CaptureTime.Equal(wantA) {
		t.Errorf("a: DateTimeOriginal/CreateDate should win over FileModifyDate, got %v", results[0].CaptureTime)
	}

	wantB := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	if !results[1].CaptureTime.Equal(wantB) {
		t.Errorf("b: expected FileModifyDate fallback, got %v", results[1].CaptureTime)
	}

	if !results[2].CaptureTime.IsZero() {
		t.Errorf("c: expected no usable timestamp, got %v", results[2].CaptureTime)
	}
}

func TestProbeFallsBackToModTimeWhenToolMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.jpg")
	if err := os.WriteFile(path, []byte("not a real jpeg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	p := New(800, "photox-metaprobe-tool-that-does-not-exist")
	results := p.Probe([]string{path})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	// No EXIF in the fixture and no external tool available: the last
	// fallback tier is the file's own mtime, not a zero MetadataMissing —
	// only a file that can't even be stat'd should come back zero.
	if !results[0].CaptureTime.Equal(info.ModTime()) {
		t.Errorf("expected FileModifyDate fallback to the file's mtime %v, got %v", info.ModTime(), results[0].CaptureTime)
	}
}

func TestProbeReturnsZeroWhenFileDoesNotExist(t *testing.T) {
	p := New(800, "photox-metaprobe-tool-that-does-not-exist")
	results := p.Probe([]string{"/nonexistent/path/does-not-exist.jpg"})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if !results[0].CaptureTime.IsZero() {
		t.Errorf("expected zero capture time when even os.Stat fails, got %v", results[0].CaptureTime)
	}
}
