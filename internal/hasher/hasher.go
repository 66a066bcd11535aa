// Package hasher computes the two-phase content fingerprint used for
// deduplication: a cheap tail-sample digest for large files, promoted to a
// full-content digest only when a same-size collision demands it.
package hasher

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Fingerprint identifies content under the tail-sample-then-promote
// protocol: two fingerprints with Full==false may still collide on Digest
// and Size without sharing content; only a Full fingerprint is a content
// identity.
type Fingerprint struct {
	Size   int64
	Digest [16]byte
	Full   bool
}

// Key returns the string used as the index's composite primary key.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%d:%s", f.Size, hex.EncodeToString(f.Digest[:]))
}

// Hasher computes fingerprints with a bounded worker pool.
type Hasher struct {
	Workers        int
	ThresholdBytes int64
}

func New(workers int, thresholdBytes int64) *Hasher {
	if workers < 1 {
		workers = 1
	}
	return &Hasher{Workers: workers, ThresholdBytes: thresholdBytes}
}

// Fingerprint computes the size+tail-sample (or full, for small files)
// digest of path. Exactly one file handle is open at a time and it is
// closed on every exit path.
func (h *Hasher) Fingerprint(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Fingerprint{}, err
	}
	size := info.Size()

	if size <= h.ThresholdBytes {
		digest, err := sumReader(f)
		if err != nil {
			return Fingerprint{}, err
		}
		return Fingerprint{Size: size, Digest: digest, Full: true}, nil
	}

	if _, err := f.Seek(-h.ThresholdBytes, io.SeekEnd); err != nil {
		return Fingerprint{}, err
	}
	digest, err := sumReader(f)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Size: size, Digest: digest, Full: false}, nil
}

// Promote recomputes path's fingerprint over its entire content, used when
// a Tail fingerprint collides by size with another index entry.
func (h *Hasher) Promote(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Fingerprint{}, err
	}
	digest, err := sumReader(f)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Size: info.Size(), Digest: digest, Full: true}, nil
}

func sumReader(r io.Reader) ([16]byte, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return [16]byte{}, err
	}
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Job is one unit of fingerprinting work submitted to HashMany, keyed by
// an index so ordered result collection can restore submission order.
type Job struct {
	Index int
	Path  string
}

// Result pairs a Job's outcome with its originating index.
type Result struct {
	Index       int
	Path        string
	Fingerprint Fingerprint
	Err         error
}

// HashMany fingerprints paths across h.Workers goroutines, returning
// results in the same order as paths. Workers open at most one file handle
// at a time each and never retain one across tasks.
func (h *Hasher) HashMany(paths []string) []Result {
	jobs := make(chan Job, h.Workers*2)
	results := make(chan Result, h.Workers*2)
	done := make(chan struct{})

	for w := 0; w < h.Workers; w++ {
		go func() {
			for job := range jobs {
				fp, err := h.Fingerprint(job.Path)
				results <- Result{Index: job.Index, Path: job.Path, Fingerprint: fp, Err: err}
			}
		}()
	}

	go func() {
		for i, p := range paths {
			jobs <- Job{Index: i, Path: p}
		}
		close(jobs)
	}()

	ordered := make([]Result, len(paths))
	go func() {
		for i := 0; i < len(paths); i++ {
			r := <-results
			ordered[r.Index] = r
		}
		close(done)
	}()
	<-done
	return ordered
}
