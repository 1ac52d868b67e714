//go:build !linux

package storage

// detectFilesystemType reports an unknown filesystem where statfs magic
// numbers are not available, which the check treats as local.
func detectFilesystemType(path string) (string, error) {
	return "unknown", nil
}
