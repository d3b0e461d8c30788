package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var commitHashRE = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// CloneRepo clones url into destDir and checks out rev (a tag, branch, or
// commit hash). destDir's parent is created if missing; destDir itself must
// not exist.
func CloneRepo(ctx context.Context, url, rev, destDir string) error {
	if err := os.MkdirAll(filepath.Dir(destDir), 0o750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	env := NoGitEnv(os.Environ())

	if _, err := runGit(ctx, "", env, "clone", "--no-checkout", "--origin", "origin", url, destDir); err != nil {
		return fmt.Errorf("failed to clone %s: %w", url, err)
	}

	if _, err := runGit(ctx, destDir, env, "fetch", "origin", "--tags"); err != nil {
		return fmt.Errorf("failed to fetch tags for %s: %w", url, err)
	}

	return checkoutRevision(ctx, destDir, env, rev)
}

// UpdateRepo fetches and checks out rev in an already-cloned repository at
// dir, fetching from origin only if rev isn't already resolvable locally.
func UpdateRepo(ctx context.Context, dir, rev string) error {
	env := NoGitEnv(os.Environ())

	if _, err := runGit(ctx, dir, env, "rev-parse", "--verify", "--quiet", rev+"^{commit}"); err == nil {
		return checkoutRevision(ctx, dir, env, rev)
	}

	if _, err := runGit(ctx, dir, env, "fetch", "origin", "--tags", "--force"); err != nil {
		return fmt.Errorf("failed to fetch updates: %w", err)
	}

	return checkoutRevision(ctx, dir, env, rev)
}

func checkoutRevision(ctx context.Context, dir string, env []string, rev string) error {
	if rev == "" {
		return nil
	}

	candidates := []string{rev}
	if !commitHashRE.MatchString(rev) {
		candidates = append(candidates,
			"refs/tags/"+rev,
			"origin/"+rev,
		)
	}

	var lastErr error
	for _, c := range candidates {
		if _, err := runGit(ctx, dir, env, "checkout", "--force", "--quiet", c, "--"); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed to resolve revision %q: %w", rev, lastErr)
}

// SubmodulesInit recursively initializes and updates submodules, used by
// hook repos that vendor their own dependencies as submodules.
func SubmodulesInit(ctx context.Context, dir string) error {
	env := NoGitEnv(os.Environ())
	if _, err := runGit(ctx, dir, env, "submodule", "update", "--init", "--recursive"); err != nil {
		return fmt.Errorf("failed to initialize submodules: %w", err)
	}
	return nil
}
