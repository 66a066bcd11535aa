package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"photox/internal/photoerr"
)

func TestSinkWritesRowsAndSummary(t *testing.T) {
	dataDir := t.TempDir()
	reportDir := filepath.Join(dataDir, "reports", "run-1")
	historyPath := filepath.Join(dataDir, "run_history.json")

	s, err := New(reportDir, historyPath, "run-1", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Moved("/src/a.jpg", "/dest/2024/03/a.jpg"); err != nil {
		t.Fatalf("Moved: %v", err)
	}
	if err := s.Duplicate("/src/b.jpg", "/dest/2024/03/b.jpg"); err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if err := s.Error("/src/c.jpg", photoerr.HashReadFailed, "disk error"); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	moved, err := os.ReadFile(filepath.Join(reportDir, "moved.csv"))
	if err != nil {
		t.Fatalf("read moved.csv: %v", err)
	}
	if !strings.Contains(string(moved), "/src/a.jpg") {
		t.Errorf("moved.csv missing expected row: %s", moved)
	}

	summary, err := os.ReadFile(filepath.Join(reportDir, "summary.json"))
	if err != nil {
		t.Fatalf("read summary.json: %v", err)
	}
	if !strings.Contains(string(summary), `"moved": 1`) {
		t.Errorf("summary.json missing moved count: %s", summary)
	}

	history, err := os.ReadFile(historyPath)
	if err != nil {
		t.Fatalf("read run_history.json: %v", err)
	}
	if !strings.Contains(string(history), "run-1") {
		t.Errorf("run_history.json missing run id: %s", history)
	}
}

func TestSinkDryRunSuffixesFilesAndSkipsHistory(t *testing.T) {
	dataDir := t.TempDir()
	reportDir := filepath.Join(dataDir, "reports", "run-2")
	historyPath := filepath.Join(dataDir, "run_history.json")

	s, err := New(reportDir, historyPath, "run-2", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Moved("/src/a.jpg", "/dest/2024/03/a.jpg"); err != nil {
		t.Fatalf("Moved: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(reportDir, "moved_dryrun.csv")); err != nil {
		t.Errorf("expected dryrun-suffixed CSV: %v", err)
	}
	if _, err := os.Stat(filepath.Join(reportDir, "summary_dryrun.json")); err != nil {
		t.Errorf("expected dryrun-suffixed summary: %v", err)
	}
	if _, err := os.Stat(historyPath); !os.IsNotExist(err) {
		t.Errorf("dry-run should not touch run_history.json")
	}
}
