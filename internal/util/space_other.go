//go:build !unix

package util

// GetAvailableSpace returns 0 on platforms without statfs.
func GetAvailableSpace(path string) uint64 {
	return 0
}
