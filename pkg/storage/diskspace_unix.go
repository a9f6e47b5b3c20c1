//go:build unix

package storage

import "golang.org/x/sys/unix"

// FreeSpace returns the free bytes on the volume holding path. Best-effort:
// used only to enrich I/O failure diagnostics.
func FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
