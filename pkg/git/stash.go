package git

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrNoUnstagedChanges is returned when there are no unstaged changes to stash.
var ErrNoUnstagedChanges = errors.New("no unstaged changes to stash")

// StashInfo is the token returned by stash_unstaged(): a patch file covering
// only the unstaged diff, plus the set of files it touches.
type StashInfo struct {
	PatchFile string
	Files     []string
}

// HasUnstagedChanges reports whether any tracked file has unstaged edits.
func (r *Repository) HasUnstagedChanges() (bool, error) {
	cmd := exec.Command("git", "-C", r.Root, "diff", "--quiet", "--exit-code") // #nosec G204 -- fixed args
	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) && exitError.ExitCode() == 1 {
			return true, nil
		}
		return false, fmt.Errorf("failed to check for unstaged changes: %w", err)
	}
	return false, nil
}

// StashUnstagedChanges saves unstaged edits as a patch under patchDir and
// resets the working tree to exactly the staged content, so hooks only ever
// see the to-be-committed state. The index and untracked files are left
// untouched.
func (r *Repository) StashUnstagedChanges(patchDir string) (*StashInfo, error) {
	hasChanges, err := r.HasUnstagedChanges()
	if err != nil {
		return nil, err
	}
	if !hasChanges {
		return nil, ErrNoUnstagedChanges
	}

	// Only tracked files with unstaged edits are reset; untracked files stay.
	out, err := exec.Command("git", "-C", r.Root, "diff", "--name-only").Output() // #nosec G204 -- fixed args
	if err != nil {
		return nil, fmt.Errorf("failed to list unstaged files: %w", err)
	}
	files := splitLines(string(out))

	patchFile, err := patchPath(patchDir)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("git", "-C", r.Root, "diff", "--binary") // #nosec G204 -- fixed args
	patchContent, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to create patch: %w", err)
	}
	if err := os.WriteFile(patchFile, patchContent, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write patch file: %w", err)
	}

	stash := &StashInfo{PatchFile: patchFile, Files: files}

	for _, file := range files {
		if err := r.checkoutFileFromIndex(file); err != nil {
			if err := r.writeFileFromStaged(file); err != nil {
				if restoreErr := r.RestoreFromStash(stash); restoreErr != nil {
					fmt.Printf("[WARN] failed to restore from stash: %v\n", restoreErr)
				}
				return nil, fmt.Errorf("failed to write staged content for %s: %w", file, err)
			}
		}
	}

	return stash, nil
}

func (r *Repository) checkoutFileFromIndex(file string) error {
	cmd := exec.Command("git", "-C", r.Root, "checkout", "--", file) // #nosec G204 -- file is repo-relative
	return cmd.Run()
}

func (r *Repository) writeFileFromStaged(file string) error {
	content, err := r.GetStagedFileContent(file)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.Root, file), content, 0o600)
}

// CanApplyStash dry-runs the patch to detect conflicts with changes a hook
// may have made (e.g. a formatter rewriting a file the user had also edited).
func (r *Repository) CanApplyStash(stash *StashInfo) (bool, error) {
	if stash == nil {
		return true, nil
	}
	cmd := exec.Command("git", "-C", r.Root, "apply", "--check", stash.PatchFile) // #nosec G204 -- internal patch path
	if err := cmd.Run(); err != nil {
		return false, nil //nolint:nilerr // expected outcome when the stash can't be applied cleanly
	}
	return true, nil
}

// RestoreFromStash applies the patch back to the working tree, leaving the
// index as it is. When the plain apply fails it falls back to a three-way
// merge, which also writes the merged result into the index. If apply fails
// the patch is left on disk and its location is surfaced rather than
// silently discarded.
func (r *Repository) RestoreFromStash(stash *StashInfo) error {
	if stash == nil {
		return nil
	}

	cmd := exec.Command("git", "-C", r.Root, "apply", stash.PatchFile) // #nosec G204 -- internal patch path
	if err := cmd.Run(); err != nil {
		cmd = exec.Command("git", "-C", r.Root, "apply", "--3way", stash.PatchFile) // #nosec G204 -- internal patch path
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("failed to restore stashed changes from %s: %w", stash.PatchFile, err)
		}
	}

	fmt.Printf("[INFO] Restored changes from %s.\n", stash.PatchFile)

	if err := os.Remove(stash.PatchFile); err != nil {
		fmt.Printf("[WARN] failed to remove patch file: %v\n", err)
	}
	return nil
}

// ResetToStaged discards working-tree edits and resets tracked files to
// exactly the index content, used when a hook's auto-fix conflicts with the
// user's stashed changes and must be rolled back.
func (r *Repository) ResetToStaged() error {
	cmd := exec.Command("git", "-C", r.Root, "checkout-index", "-a", "-f") // #nosec G204 -- fixed args
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to reset to staged content: %w", err)
	}
	return nil
}

// CleanupStash removes the patch file without attempting to apply it,
// used on abnormal exit paths where restoring is not safe.
func (r *Repository) CleanupStash(stash *StashInfo) {
	if stash != nil {
		if err := os.Remove(stash.PatchFile); err != nil && !os.IsNotExist(err) {
			fmt.Printf("[WARN] failed to remove patch file: %v\n", err)
		}
	}
}

func patchPath(patchDir string) (string, error) {
	if err := os.MkdirAll(patchDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create patch directory: %w", err)
	}
	return filepath.Join(patchDir, "prek-"+uuid.NewString()+".patch"), nil
}
