package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicRename moves scratchPath into destPath. Per the store's failure
// semantics, a rename across filesystems is refused rather than silently
// falling back to copy: scratch/ is guaranteed to live on the same
// filesystem as repos/, envs/, and toolchains/, so any EXDEV here means a
// misconfigured store root.
func AtomicRename(scratchPath, destPath string) error {
	if err := sameFilesystem(filepath.Dir(scratchPath), filepath.Dir(destPath)); err != nil {
		return fmt.Errorf("store misconfigured: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return fmt.Errorf("failed to prepare destination directory: %w", err)
	}

	if err := os.RemoveAll(destPath); err != nil {
		return fmt.Errorf("failed to clear destination before rename: %w", err)
	}

	if err := os.Rename(scratchPath, destPath); err != nil {
		return fmt.Errorf("atomic rename failed: %w", err)
	}
	return nil
}
