package metaprobe

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// fallbackExtractor is the in-process metadata reader used once a path has
// exhausted both the batch and singly-retried external-tool probes. It
// covers exactly the two media families the external tool would have:
// EXIF-bearing stills via goexif, and container metadata via ffprobe.
type fallbackExtractor struct{}

func newFallbackExtractor() *fallbackExtractor {
	return &fallbackExtractor{}
}

var stillExts = map[string]bool{".jpg": true, ".jpeg": true, ".heic": true, ".heif": true}
var videoExts = map[string]bool{".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true}

func (f *fallbackExtractor) extract(path string) (time.Time, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	var t time.Time
	var ok bool
	switch {
	case stillExts[ext]:
		t, ok = f.extractEXIF(path)
	case videoExts[ext]:
		t, ok = f.extractVideo(path)
	}
	if ok {
		return t, true
	}
	// Last fallback tier, matching FileModifyDate in the external tool's
	// own field order: the filesystem's own modify time.
	return statModTime(path)
}

func statModTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (f *fallbackExtractor) extractEXIF(path string) (time.Time, bool) {
	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer file.Close()

	x, err := exif.Decode(file)
	if err != nil {
		return time.Time{}, false
	}
	if t, err := x.DateTime(); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ffprobeFormat mirrors the subset of `ffprobe -show_format -print_format
// json` output this fallback cares about.
type ffprobeFormat struct {
	Format struct {
		Tags map[string]string `json:"tags"`
	} `json:"format"`
}

func (f *fallbackExtractor) extractVideo(path string) (time.Time, bool) {
	cmd := exec.Command("ffprobe", "-v", "quiet", "-print_format", "json", "-show_format", path)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return time.Time{}, false
	}

	var parsed ffprobeFormat
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return time.Time{}, false
	}
	raw, ok := parsed.Format.Tags["creation_time"]
	if !ok || raw == "" {
		return time.Time{}, false
	}
	return parseAny(raw)
}
