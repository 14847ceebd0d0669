//go:build !linux

package util

// AvailableMemoryBytes returns 0 on platforms without a memory probe.
func AvailableMemoryBytes() uint64 {
	return 0
}
