//go:build !unix

package storage

import "errors"

// FreeSpace is not implemented on this platform
func FreeSpace(path string) (uint64, error) {
	return 0, errors.New("free space reporting not supported on this platform")
}
