// Package metaprobe resolves capture times by batching calls to an
// external metadata tool (an exiftool-style JSON emitter), with
// partial-batch recovery and an in-process fallback for files that still
// fail a singly-retried probe.
package metaprobe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// fieldOrder is the fallback order for resolving capture time, exactly as
// specified: the first of these fields present and parseable wins.
var fieldOrder = []string{"DateTimeOriginal", "CreateDate", "MediaCreateDate", "FileModifyDate"}

var timeLayouts = []string{
	"2006:01:02 15:04:05-07:00",
	"2006:01:02 15:04:05",
	time.RFC3339,
}

// Result is the outcome of probing one path. A zero CaptureTime means no
// usable timestamp was found (MetadataMissing, per the error taxonomy).
type Result struct {
	Path        string
	CaptureTime time.Time
}

// Prober batches calls to an external metadata tool.
type Prober struct {
	ChunkSize int
	ToolPath  string // external tool binary, e.g. "exiftool"

	// fallback is the in-process extractor used once a path has failed
	// both a batch probe and an individual re-probe.
	fallback *fallbackExtractor
}

func New(chunkSize int, toolPath string) *Prober {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if toolPath == "" {
		toolPath = "exiftool"
	}
	return &Prober{ChunkSize: chunkSize, ToolPath: toolPath, fallback: newFallbackExtractor()}
}

// Probe resolves capture times for every path, in order, batching calls to
// the external tool in groups of ChunkSize.
func (p *Prober) Probe(paths []string) []Result {
	results := make([]Result, 0, len(paths))
	for start := 0; start < len(paths); start += p.ChunkSize {
		end := start + p.ChunkSize
		if end > len(paths) {
			end = len(paths)
		}
		results = append(results, p.probeBatch(paths[start:end])...)
	}
	return results
}

// probeBatch runs the external tool over one batch. If the batch-level
// call fails outright, each path is re-probed singly so that one bad file
// does not lose timestamps for the rest of the batch.
func (p *Prober) probeBatch(paths []string) []Result {
	out, err := p.runTool(paths)
	if err == nil {
		parsed, ok := parseBatchOutput(out, paths)
		if ok {
			return parsed
		}
		// Output didn't parse as expected; fall through to singly-probing
		// just like a subprocess failure.
	}

	results := make([]Result, len(paths))
	for i, path := range paths {
		results[i] = p.probeSingle(path)
	}
	return results
}

func (p *Prober) probeSingle(path string) Result {
	out, err := p.runTool([]string{path})
	if err == nil {
		if parsed, ok := parseBatchOutput(out, []string{path}); ok && len(parsed) == 1 {
			if !parsed[0].CaptureTime.IsZero() {
				return parsed[0]
			}
		}
	}
	// Both the batch and the single re-probe of the external tool failed
	// (or yielded nothing usable); hand off to the in-process fallback.
	t, ok := p.fallback.extract(path)
	if !ok {
		return Result{Path: path}
	}
	return Result{Path: path, CaptureTime: t}
}

func (p *Prober) runTool(paths []string) ([]byte, error) {
	args := []string{"-j"}
	for _, f := range fieldOrder {
		args = append(args, "-"+f)
	}
	args = append(args, paths...)

	cmd := exec.Command(p.ToolPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", p.ToolPath, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// toolRecord mirrors one element of exiftool's -j JSON array output.
type toolRecord struct {
	SourceFile       string `json:"SourceFile"`
	DateTimeOriginal string `json:"DateTimeOriginal"`
	CreateDate       string `json:"CreateDate"`
	MediaCreateDate  string `json:"MediaCreateDate"`
	FileModifyDate   string `json:"FileModifyDate"`
}

func parseBatchOutput(out []byte, paths []string) ([]Result, bool) {
	var records []toolRecord
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, false
	}
	byPath := make(map[string]toolRecord, len(records))
	for _, r := range records {
		byPath[r.SourceFile] = r
	}

	results := make([]Result, len(paths))
	for i, path := range paths {
		rec, ok := byPath[path]
		results[i] = Result{Path: path}
		if !ok {
			continue
		}
		fields := map[string]string{
			"DateTimeOriginal": rec.DateTimeOriginal,
			"CreateDate":       rec.CreateDate,
			"MediaCreateDate":  rec.MediaCreateDate,
			"FileModifyDate":   rec.FileModifyDate,
		}
		for _, name := range fieldOrder {
			if raw := fields[name]; raw != "" {
				if t, ok := parseAny(raw); ok {
					results[i].CaptureTime = t
					break
				}
			}
		}
	}
	return results, true
}

func parseAny(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
