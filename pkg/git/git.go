// Package git provides a thin, typed wrapper over the git binary invoked as
// a subprocess. No git library is linked in: every operation shells out,
// matching the spec's requirement that the git binary's contract is the
// integration point, not an embedded implementation of it.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Repository is a handle on the enclosing git repository, rooted at Root.
type Repository struct {
	Root string
}

// NewRepository discovers the git root starting at path ("" means cwd) and
// returns a handle on it.
func NewRepository(path string) (*Repository, error) {
	root, err := FindGitRoot(path)
	if err != nil {
		return nil, err
	}
	return &Repository{Root: root}, nil
}

// FindGitRoot walks upward from path looking for a .git directory or
// worktree file, matching git's own discovery rule.
func FindGitRoot(path string) (string, error) {
	if path == "" {
		var err error
		path, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		gitDir := filepath.Join(path, ".git")
		if info, statErr := os.Stat(gitDir); statErr == nil {
			if info.IsDir() {
				return path, nil
			}
			// Worktrees: .git is a file containing "gitdir: <path>".
			if content, readErr := os.ReadFile(gitDir); readErr == nil { // #nosec G304 -- discovering repo root
				if strings.HasPrefix(strings.TrimSpace(string(content)), "gitdir: ") {
					return path, nil
				}
			}
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", fmt.Errorf("not a git repository (or any parent up to mount point)")
		}
		path = parent
	}
}

// IsInRepository reports whether cwd is inside a git repository.
func IsInRepository() bool {
	_, err := FindGitRoot("")
	return err == nil
}

// run invokes git with args against r.Root, inheriting the user's
// environment (operations against the user's own repository must preserve
// GIT_* so custom hooks/attributes keep working).
func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	return runGit(ctx, r.Root, os.Environ(), args...)
}

// runGit is the single subprocess entry point used by this package and by
// pkg/repository's clone/update operations. env is the full child
// environment to use; callers cloning into the store pass NoGitEnv-
// filtered values so the clone never picks up the invoking repo's config.
func runGit(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := exec.CommandContext(ctx, "git", args...) // #nosec G204 -- args are static/validated callers
	cmd.Dir = dir
	cmd.Env = append(env, "GIT_TERMINAL_PROMPT=0", "TERM=dumb")
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func splitLines(out string) []string {
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// GetStagedFiles returns paths added, copied, modified or renamed in the
// index relative to HEAD. Intent-to-add entries are not included;
// IntentToAddFiles lists those.
func (r *Repository) GetStagedFiles() ([]string, error) {
	out, err := r.run(context.Background(), "diff", "--staged", "--name-only", "--diff-filter=ACMR")
	if err != nil {
		return nil, fmt.Errorf("failed to list staged files: %w", err)
	}
	return splitLines(out), nil
}

// IntentToAddFiles returns paths staged via `git add -N`, which have no
// content in the index yet; the "large files" check treats these specially.
func (r *Repository) IntentToAddFiles() ([]string, error) {
	// Against the working tree, only intent-to-add entries show up as added.
	out, err := r.run(context.Background(), "diff", "--name-only", "--diff-filter=A", "--ignore-submodules")
	if err != nil {
		return nil, fmt.Errorf("failed to list intent-to-add files: %w", err)
	}
	return splitLines(out), nil
}

// GetAllFiles returns every file tracked by git.
func (r *Repository) GetAllFiles() ([]string, error) {
	out, err := r.run(context.Background(), "ls-files")
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}
	return splitLines(out), nil
}

// FilesInDirectory returns tracked files rooted under dir.
func (r *Repository) FilesInDirectory(dir string) ([]string, error) {
	out, err := r.run(context.Background(), "ls-files", "--", dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list files under %s: %w", dir, err)
	}
	return splitLines(out), nil
}

// GetChangedFiles returns paths changed between two refs.
func (r *Repository) GetChangedFiles(fromRef, toRef string) ([]string, error) {
	out, err := r.run(context.Background(), "diff", "--name-only", "--diff-filter=ACMR", fromRef+"..."+toRef)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s...%s: %w", fromRef, toRef, err)
	}
	return splitLines(out), nil
}

// GetUnstagedFiles returns paths with changes in the working tree not yet
// staged, plus untracked files.
func (r *Repository) GetUnstagedFiles() ([]string, error) {
	modified, err := r.run(context.Background(), "diff", "--name-only")
	if err != nil {
		return nil, fmt.Errorf("failed to list unstaged files: %w", err)
	}
	untracked, err := r.run(context.Background(), "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("failed to list untracked files: %w", err)
	}
	seen := map[string]bool{}
	var files []string
	for _, f := range append(splitLines(modified), splitLines(untracked)...) {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	return files, nil
}

// GetCommitFiles returns files changed by a single commit.
func (r *Repository) GetCommitFiles(commitRef string) ([]string, error) {
	out, err := r.run(context.Background(), "diff-tree", "--no-commit-id", "--name-only", "-r", commitRef)
	if err != nil {
		return nil, fmt.Errorf("failed to list files for commit %s: %w", commitRef, err)
	}
	return splitLines(out), nil
}

// GetPushFiles returns the files in commits about to be pushed, diffing the
// local branch against the remote tracking branch (falling back to all
// tracked files when the remote branch doesn't exist yet).
func (r *Repository) GetPushFiles(localBranch, remoteBranch string) ([]string, error) {
	if remoteBranch == "" {
		return r.GetAllFiles()
	}
	out, err := r.run(context.Background(), "diff", "--name-only", "--diff-filter=ACMR", remoteBranch+"..."+localBranch)
	if err != nil {
		return r.GetAllFiles()
	}
	return splitLines(out), nil
}

// GetCurrentBranch returns the checked-out branch's short name.
func (r *Repository) GetCurrentBranch() (string, error) {
	out, err := r.run(context.Background(), "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("HEAD is not pointing to a branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// GetRemoteURL returns the fetch URL configured for remoteName.
func (r *Repository) GetRemoteURL(remoteName string) (string, error) {
	out, err := r.run(context.Background(), "remote", "get-url", remoteName)
	if err != nil {
		return "", fmt.Errorf("failed to get remote %s url: %w", remoteName, err)
	}
	return strings.TrimSpace(out), nil
}

// InMerge reports whether a merge is in progress (MERGE_MSG or MERGE_HEAD
// present), which
// the merge-conflict check uses to decide whether markers are errors.
func (r *Repository) InMerge() bool {
	for _, name := range []string{"MERGE_MSG", "MERGE_HEAD"} {
		if _, err := os.Stat(filepath.Join(r.Root, ".git", name)); err == nil {
			return true
		}
	}
	return false
}

// HasUnmergedFiles reports whether the index currently has unresolved merge
// conflicts.
func (r *Repository) HasUnmergedFiles() bool {
	out, err := r.run(context.Background(), "diff", "--name-only", "--diff-filter=U")
	return err == nil && strings.TrimSpace(out) != ""
}

// HasUnstagedChangesForFile reports whether path has unstaged modifications.
func (r *Repository) HasUnstagedChangesForFile(path string) bool {
	cmd := exec.Command("git", "-C", r.Root, "diff", "--quiet", "--exit-code", "--", path) // #nosec G204 -- path is repo-relative
	return cmd.Run() != nil
}

// GetStagedFileContent returns the blob content of path as recorded in the
// index.
func (r *Repository) GetStagedFileContent(path string) ([]byte, error) {
	out, err := r.run(context.Background(), "show", ":"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged content for %s: %w", path, err)
	}
	return []byte(out), nil
}

// WasSymlink reports whether the index records path with symlink mode
// (120000), used to detect symlinks destroyed by a checkout.
func (r *Repository) WasSymlink(path string) bool {
	out, err := r.run(context.Background(), "ls-files", "--stage", "--", path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(out), "120000 ")
}

// HashObject computes the git object hash of the file on disk at path,
// without adding it to the object database. Used by modification detection.
func (r *Repository) HashObject(path string) (string, error) {
	out, err := r.run(context.Background(), "hash-object", "--", path)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return strings.TrimSpace(out), nil
}

// Attr queries a git attribute (e.g. "filter=lfs") for path.
func (r *Repository) Attr(path, name string) (string, error) {
	out, err := r.run(context.Background(), "check-attr", name, "--", path)
	if err != nil {
		return "", fmt.Errorf("failed to query attribute %s for %s: %w", name, path, err)
	}
	// Output format: "<path>: <attr>: <value>"
	parts := strings.SplitN(strings.TrimSpace(out), ": ", 3)
	if len(parts) != 3 {
		return "", nil
	}
	return parts[2], nil
}

// DiffOutput returns the working tree's unstaged diff, used by
// --show-diff-on-failure.
func (r *Repository) DiffOutput() ([]byte, error) {
	out, err := r.run(context.Background(), "--no-pager", "diff", "--no-color")
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// InstallHook writes script as the named git hook, matching the shim that
// `install` puts under .git/hooks/.
func (r *Repository) InstallHook(hookName, script string) error {
	hooksDir := filepath.Join(r.Root, ".git", "hooks")
	if err := os.MkdirAll(hooksDir, 0o750); err != nil {
		return fmt.Errorf("failed to create hooks directory: %w", err)
	}
	hookPath := filepath.Join(hooksDir, hookName)
	if err := os.WriteFile(hookPath, []byte(script), 0o700); err != nil { // #nosec G306 -- hook must be executable
		return fmt.Errorf("failed to write hook file: %w", err)
	}
	return nil
}

// UninstallHook removes a previously installed hook script.
func (r *Repository) UninstallHook(hookName string) error {
	hookPath := filepath.Join(r.Root, ".git", "hooks", hookName)
	if err := os.Remove(hookPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove hook: %w", err)
	}
	return nil
}

// HasHook reports whether a hook script is already installed.
func (r *Repository) HasHook(hookName string) bool {
	_, err := os.Stat(filepath.Join(r.Root, ".git", "hooks", hookName))
	return err == nil
}

// withTimeout bounds long-running subprocess invocations like fetch/clone.
func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Minute
	}
	return context.WithTimeout(context.Background(), d)
}
