package pathutil

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// maxSuffixAttempts bounds unique-destination retries before giving up
// with a TargetExists-class error (see photoerr).
const maxSuffixAttempts = 1000

// UniqueDestination returns a path under dir for desiredName that does not
// currently exist, inserting a numeric suffix before the extension on
// collision: name.ext, name_1.ext, name_2.ext, ...
func UniqueDestination(dir, desiredName string) (string, error) {
	ext := filepath.Ext(desiredName)
	stem := strings.TrimSuffix(desiredName, ext)

	candidate := filepath.Join(dir, desiredName)
	for attempt := 0; attempt < maxSuffixAttempts; attempt++ {
		if attempt > 0 {
			candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, attempt, ext))
		}
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not find a unique name for %q in %q after %d attempts", desiredName, dir, maxSuffixAttempts)
}

// SafeJoin joins dir and name, rejecting any name that would escape dir via
// ".." components (satellite/rename inputs are always derived from a
// primary's own basename, but this guards against a malformed one).
func SafeJoin(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("unsafe path component %q", name)
	}
	return filepath.Join(dir, name), nil
}

// Place moves src to dst. It tries a plain rename first (atomic, same
// filesystem); on EXDEV it falls back to copy-then-verify-then-delete, so
// that an archive living on a different volume than the source still gets
// a crash-safe move. When dryRun is true, Place returns nil and performs
// no filesystem mutation, not even creating dst's parent directory.
func Place(src, dst string, dryRun bool) error {
	if dryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return fmt.Errorf("rename %q to %q: %w", src, dst, err)
	}
	return copyVerifyDelete(src, dst)
}

// copyVerifyDelete handles the cross-device case rename can't: stream a
// copy to a temp file alongside dst, verify its MD5 matches the source,
// rename the temp file into place, then remove the source.
func copyVerifyDelete(src, dst string) error {
	tmp := dst + ".photox-tmp"
	srcSum, err := copyWithSum(src, tmp)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("copy %q to %q: %w", src, dst, err)
	}
	dstSum, err := sumFile(tmp)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("verify copy of %q: %w", src, err)
	}
	if srcSum != dstSum {
		os.Remove(tmp)
		return fmt.Errorf("copy verification mismatch for %q", src)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize copy of %q: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source %q after copy: %w", src, err)
	}
	return nil
}

func copyWithSum(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	h := md5.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		return "", err
	}
	if info, err := in.Stat(); err == nil {
		os.Chtimes(dst, info.ModTime(), info.ModTime())
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func sumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
