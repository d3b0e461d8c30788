//go:build windows

package store

// sameFilesystem is a no-op on Windows; os.Rename already refuses
// cross-volume moves with its own error, which AtomicRename surfaces as-is.
func sameFilesystem(string, string) error { return nil }
