//go:build !linux

package helpers

// TotalSystemMemoryMB is unknown outside linux
func TotalSystemMemoryMB() int {
	return 0
}
