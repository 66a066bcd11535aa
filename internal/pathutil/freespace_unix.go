//go:build !windows

package pathutil

import "syscall"

// FreeSpace returns the bytes available to an unprivileged user on the
// filesystem backing path.
func FreeSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
