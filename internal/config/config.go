// Package config defines the Config value threaded explicitly through the
// pipeline. Building one from flags or environment is the CLI's job, not
// this package's; Config itself only validates and resolves paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultExiftoolChunkSize = 800
	DefaultHashWorkers       = 4
	DefaultHashThresholdMB   = 10
)

// Config is the fully-resolved set of inputs for one pipeline run.
type Config struct {
	Source string // scan root
	Dest   string // archive root

	DataDir        string // default <dest>/.photox
	DupDir         string // duplicate quarantine
	OrphanAAEDir   string // orphan sidecar quarantine
	SecondCheckDir string // unrecognized quarantine

	ExiftoolChunkSize int
	HashWorkers       int
	HashThresholdMB   int

	DryRun      bool
	IncludeDest bool // build-index mode: scan dest instead of source
}

// New fills in defaults relative to Dest and resolves every path to an
// absolute one, the way checkDirExists resolved paths up front before the
// rest of the pipeline ever consulted the filesystem.
func New(source, dest string) (Config, error) {
	c := Config{
		Source:            source,
		Dest:              dest,
		ExiftoolChunkSize: DefaultExiftoolChunkSize,
		HashWorkers:       DefaultHashWorkers,
		HashThresholdMB:   DefaultHashThresholdMB,
	}
	c.applyDefaultDirs()
	return c, c.resolveAbsolutes()
}

func (c *Config) applyDefaultDirs() {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.Dest, ".photox")
	}
	if c.DupDir == "" {
		c.DupDir = filepath.Join(c.DataDir, "duplicates")
	}
	if c.OrphanAAEDir == "" {
		c.OrphanAAEDir = filepath.Join(c.DataDir, "orphan_aae")
	}
	if c.SecondCheckDir == "" {
		c.SecondCheckDir = filepath.Join(c.DataDir, "second_check")
	}
}

func (c *Config) resolveAbsolutes() error {
	fields := []*string{&c.Source, &c.Dest, &c.DataDir, &c.DupDir, &c.OrphanAAEDir, &c.SecondCheckDir}
	for _, f := range fields {
		if *f == "" {
			continue
		}
		abs, err := filepath.Abs(*f)
		if err != nil {
			return fmt.Errorf("resolve path %q: %w", *f, err)
		}
		*f = abs
	}
	return nil
}

// HashThresholdBytes returns the tail-sampling threshold in bytes.
func (c Config) HashThresholdBytes() int64 {
	return int64(c.HashThresholdMB) * 1024 * 1024
}

// IndexPath returns the path to the persistent fingerprint store.
func (c Config) IndexPath() string {
	return filepath.Join(c.DataDir, "photo_md5.sqlite")
}

// RunHistoryPath returns the path to the cross-run ledger.
func (c Config) RunHistoryPath() string {
	return filepath.Join(c.DataDir, "run_history.json")
}

// ReportDir returns the report directory for a given run id.
func (c Config) ReportDir(runID string) string {
	return filepath.Join(c.DataDir, "reports", "run-"+runID)
}

// Validate checks that the config describes a runnable pipeline. It is the
// only place a ConfigInvalid condition is surfaced, per the "fail before
// run starts" rule.
func (c Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("config: source directory is required")
	}
	if c.Dest == "" {
		return fmt.Errorf("config: dest directory is required")
	}
	info, err := os.Stat(c.Source)
	if err != nil {
		return fmt.Errorf("config: source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: source %q is not a directory", c.Source)
	}
	if err := os.MkdirAll(c.Dest, 0o755); err != nil {
		return fmt.Errorf("config: cannot create dest directory: %w", err)
	}
	if c.ExiftoolChunkSize <= 0 {
		return fmt.Errorf("config: exiftool_chunk_size must be positive")
	}
	if c.HashWorkers <= 0 {
		return fmt.Errorf("config: hash_workers must be positive")
	}
	if c.HashThresholdMB <= 0 {
		return fmt.Errorf("config: hash_threshold_mb must be positive")
	}
	return nil
}
