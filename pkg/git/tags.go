package git

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Tag is one tag of a cached clone with its effective timestamp: the
// annotation date for annotated tags, the tagged commit's date for
// lightweight ones.
type Tag struct {
	Name      string
	CreatedAt time.Time
}

// FetchAll updates a cached clone's refs and tags from origin.
func FetchAll(ctx context.Context, dir string) error {
	env := NoGitEnv(os.Environ())
	if _, err := runGit(ctx, dir, env, "fetch", "origin", "--tags", "--force", "--prune"); err != nil {
		return fmt.Errorf("failed to fetch refs: %w", err)
	}
	return nil
}

// ListTagsWithDates enumerates every tag with its creation timestamp.
func ListTagsWithDates(ctx context.Context, dir string) ([]Tag, error) {
	env := NoGitEnv(os.Environ())
	// %(creatordate:unix) covers both annotated and lightweight tags.
	out, err := runGit(ctx, dir, env,
		"for-each-ref", "--format=%(refname:short) %(creatordate:unix)", "refs/tags")
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	var tags []Tag
	for _, line := range splitLines(out) {
		name, stamp, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			continue
		}
		tags = append(tags, Tag{Name: name, CreatedAt: time.Unix(unix, 0)})
	}
	return tags, nil
}

// RemoteHead resolves origin's default branch tip.
func RemoteHead(ctx context.Context, dir string) (string, error) {
	env := NoGitEnv(os.Environ())
	out, err := runGit(ctx, dir, env, "ls-remote", "--symref", "origin", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to query remote HEAD: %w", err)
	}
	for _, line := range splitLines(out) {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "HEAD" {
			return fields[0], nil
		}
	}
	return "", fmt.Errorf("remote HEAD not found")
}

// ResolveCommit maps a ref (tag or branch) to its commit SHA.
func ResolveCommit(ctx context.Context, dir, ref string) (string, error) {
	env := NoGitEnv(os.Environ())
	out, err := runGit(ctx, dir, env, "rev-parse", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", ref, err)
	}
	return strings.TrimSpace(out), nil
}
