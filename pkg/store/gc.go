package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const configsIndexFile = "configs.json"

// MarkConfigUsed records that a project configuration is live, so that
// garbage_collect does not reclaim the repos/envs it references even when
// they haven't been touched recently.
func (s *Store) MarkConfigUsed(configPath string) error {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lock, err := s.LockExclusive(ctx, KindGC, "configs-index")
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	used, err := s.loadUsedConfigs()
	if err != nil {
		return err
	}
	used[abs] = true
	return s.saveUsedConfigs(used)
}

func (s *Store) loadUsedConfigs() (map[string]bool, error) {
	data, err := os.ReadFile(filepath.Join(s.root, configsIndexFile)) // #nosec G304 -- store-internal path
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configs index: %w", err)
	}
	var used map[string]bool
	if err := json.Unmarshal(data, &used); err != nil {
		return map[string]bool{}, nil
	}
	return used, nil
}

func (s *Store) saveUsedConfigs(used map[string]bool) error {
	data, err := json.MarshalIndent(used, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode configs index: %w", err)
	}
	return os.WriteFile(filepath.Join(s.root, configsIndexFile), data, 0o600)
}

// LiveConfigs returns every config path previously marked used, pruning
// entries whose file has since disappeared.
func (s *Store) LiveConfigs() ([]string, error) {
	used, err := s.loadUsedConfigs()
	if err != nil {
		return nil, err
	}
	var live []string
	changed := false
	for path := range used {
		if _, err := os.Stat(path); err != nil {
			delete(used, path)
			changed = true
			continue
		}
		live = append(live, path)
	}
	if changed {
		_ = s.saveUsedConfigs(used)
	}
	return live, nil
}

// GCResult summarizes what garbage_collect removed.
type GCResult struct {
	RemovedRepos int
	RemovedEnvs  int
	FreedPaths   []string
}

// GarbageCollect removes repos/ and envs/ entries not referenced by any live
// project graph and older than staleAfter. When dryRun is true, nothing is
// deleted and FreedPaths reports what would be removed.
func (s *Store) GarbageCollect(
	ctx context.Context,
	dryRun bool,
	referenced map[string]bool,
	staleAfter time.Duration,
) (GCResult, error) {
	lock, err := s.LockExclusive(ctx, KindGC, "sweep")
	if err != nil {
		return GCResult{}, err
	}
	defer func() { _ = lock.Release() }()

	var result GCResult
	for _, sub := range []string{"repos", "envs"} {
		dir := filepath.Join(s.root, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			full := filepath.Join(dir, entry.Name())
			if referenced[full] {
				continue
			}
			info, err := entry.Info()
			if err != nil || time.Since(info.ModTime()) < staleAfter {
				continue
			}
			if !s.LastUsed(full).IsZero() && time.Since(s.LastUsed(full)) < staleAfter {
				continue
			}

			result.FreedPaths = append(result.FreedPaths, full)
			if sub == "repos" {
				result.RemovedRepos++
			} else {
				result.RemovedEnvs++
			}
			if !dryRun {
				if err := os.RemoveAll(full); err != nil {
					return result, fmt.Errorf("failed to remove %s: %w", full, err)
				}
			}
		}
	}
	return result, nil
}
