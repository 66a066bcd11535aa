// Package report implements the run-scoped CSV and JSON audit streams:
// one row per affected file, written as it happens so a crash preserves a
// partial audit trail, plus a run-end summary and a cross-run history.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"photox/internal/photoerr"
)

// Counts tallies report rows by disposition, mirroring RunRecord.counts.
type Counts struct {
	Moved         int `json:"moved"`
	Duplicate     int `json:"duplicate"`
	DestDuplicate int `json:"dest_duplicate"`
	Error         int `json:"error"`
	OrphanSidecar int `json:"orphan_sidecar"`
	Unrecognized  int `json:"unrecognized"`
}

// RunRecord is one persisted entry in run_history.json.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Counts     Counts    `json:"counts"`
}

// Sink owns the per-run report directory: one append-only CSV writer per
// report kind, plus the run-end summary.json and the cross-run
// run_history.json ledger.
type Sink struct {
	runID      string
	dir        string
	historyPth string
	startedAt  time.Time
	dryRun     bool

	counts Counts

	moved         *rowWriter
	duplicate     *rowWriter
	destDuplicate *rowWriter
	errorRows     *rowWriter
	orphanAAE     *rowWriter
	unrecognized  *rowWriter
}

// rowWriter streams one CSV file, flushing after every row so a crash
// loses at most the row in flight.
type rowWriter struct {
	file *os.File
	w    *csv.Writer
}

func newRowWriter(path string, header []string) (*rowWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	return &rowWriter{file: f, w: w}, nil
}

func (r *rowWriter) write(fields []string) error {
	if err := r.w.Write(fields); err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}

func (r *rowWriter) close() error {
	r.w.Flush()
	return r.file.Close()
}

// New creates the report directory for runID under reportDir and opens
// every CSV stream with its header row. historyPath is the cross-run
// ledger to append to on Close.
func New(reportDir, historyPath, runID string, dryRun bool) (*Sink, error) {
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	suffix := func(name string) string {
		if !dryRun {
			return name
		}
		ext := filepath.Ext(name)
		return name[:len(name)-len(ext)] + "_dryrun" + ext
	}

	common := []string{"run_id", "timestamp", "src_path"}
	s := &Sink{runID: runID, dir: reportDir, historyPth: historyPath, startedAt: time.Now().UTC(), dryRun: dryRun}

	var err error
	if s.moved, err = newRowWriter(filepath.Join(reportDir, suffix("moved.csv")), append(common, "dst_path")); err != nil {
		return nil, err
	}
	if s.duplicate, err = newRowWriter(filepath.Join(reportDir, suffix("duplicate.csv")), append(common, "existing_path")); err != nil {
		return nil, err
	}
	if s.destDuplicate, err = newRowWriter(filepath.Join(reportDir, suffix("dest_duplicate.csv")), append(common, "existing_path")); err != nil {
		return nil, err
	}
	if s.errorRows, err = newRowWriter(filepath.Join(reportDir, suffix("error.csv")), append(common, "error_kind", "error_detail")); err != nil {
		return nil, err
	}
	if s.orphanAAE, err = newRowWriter(filepath.Join(reportDir, suffix("orphan_aae.csv")), append(common, "dst_path")); err != nil {
		return nil, err
	}
	if s.unrecognized, err = newRowWriter(filepath.Join(reportDir, suffix("unrecognized.csv")), append(common, "dst_path")); err != nil {
		return nil, err
	}
	return s, nil
}

// Moved records a file placed into the archive.
func (s *Sink) Moved(src, dst string) error {
	s.counts.Moved++
	return s.moved.write([]string{s.runID, now(), src, dst})
}

// Duplicate records a file quarantined because it matched an existing
// index entry.
func (s *Sink) Duplicate(src, existingDst string) error {
	s.counts.Duplicate++
	return s.duplicate.write([]string{s.runID, now(), src, existingDst})
}

// DestDuplicate records an intra-archive duplicate found during
// the organizer's BuildIndex: the discarded path, pointing at the kept
// canonical path.
func (s *Sink) DestDuplicate(discarded, kept string) error {
	s.counts.DestDuplicate++
	return s.destDuplicate.write([]string{s.runID, now(), discarded, kept})
}

// OrphanSidecar records a sidecar with no binding primary.
func (s *Sink) OrphanSidecar(src, dst string) error {
	s.counts.OrphanSidecar++
	return s.orphanAAE.write([]string{s.runID, now(), src, dst})
}

// Unrecognized records a file routed to the second-check quarantine for
// want of a usable timestamp.
func (s *Sink) Unrecognized(src, dst string) error {
	s.counts.Unrecognized++
	return s.unrecognized.write([]string{s.runID, now(), src, dst})
}

// Error records a per-file failure that dropped its group.
func (s *Sink) Error(src string, kind photoerr.Kind, detail string) error {
	s.counts.Error++
	return s.errorRows.write([]string{s.runID, now(), src, string(kind), detail})
}

// Counts returns the running tally, used for the summary and tests.
func (s *Sink) Counts() Counts {
	return s.counts
}

// Close flushes and closes every CSV stream, writes summary.json, and
// appends this run's RunRecord to the cross-run history ledger. In dry-run
// mode it writes summary_dryrun.json instead and leaves the ledger
// untouched.
func (s *Sink) Close() error {
	writers := []*rowWriter{s.moved, s.duplicate, s.destDuplicate, s.errorRows, s.orphanAAE, s.unrecognized}
	for _, w := range writers {
		if err := w.close(); err != nil {
			return err
		}
	}

	finishedAt := time.Now().UTC()
	record := RunRecord{RunID: s.runID, StartedAt: s.startedAt, FinishedAt: finishedAt, Counts: s.counts}

	summaryName := "summary.json"
	if s.dryRun {
		summaryName = "summary_dryrun.json"
	}
	if err := writeJSON(filepath.Join(s.dir, summaryName), record); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if s.dryRun {
		return nil
	}
	return appendHistory(s.historyPth, record)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadHistory reads the cross-run ledger at path, returning an empty slice
// if it does not exist yet.
func LoadHistory(path string) ([]RunRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var history []RunRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parse run history: %w", err)
	}
	return history, nil
}

// appendHistory loads the existing run_history.json (if any), appends
// record, and rewrites the file whole — the same "single authoritative
// ledger" shape as the index's own durability guarantee, just at run
// granularity instead of per file.
func appendHistory(path string, record RunRecord) error {
	var history []RunRecord
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &history); err != nil {
			return fmt.Errorf("parse existing run history: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	history = append(history, record)
	return writeJSON(path, history)
}
