package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// cachedGraph is the persisted discovery result for one workspace root:
// the config file list plus a fingerprint of everything that could change
// the graph (config files and ignore files, by mtime and size).
type cachedGraph struct {
	Root        string   `json:"root"`
	ConfigPaths []string `json:"config_paths"`
	Fingerprint string   `json:"fingerprint"`
	IgnoreFiles []string `json:"ignore_files"`
}

func cacheFilePath(cacheDir, root string) string {
	sum := sha256.Sum256([]byte(root))
	return filepath.Join(cacheDir, "workspace", hex.EncodeToString(sum[:])[:16]+".json")
}

// lookupCachedConfigs returns the cached config list for root when the
// cache is enabled, not bypassed, and still matches the filesystem.
func lookupCachedConfigs(opts DiscoverOptions, root string) ([]string, bool) {
	if opts.CacheDir == "" || opts.Refresh {
		return nil, false
	}

	data, err := os.ReadFile(cacheFilePath(opts.CacheDir, root)) // #nosec G304 -- store-internal path
	if err != nil {
		return nil, false
	}
	var cached cachedGraph
	if err := json.Unmarshal(data, &cached); err != nil || cached.Root != root {
		return nil, false
	}
	if fingerprintFiles(append(cached.ConfigPaths, cached.IgnoreFiles...)) != cached.Fingerprint {
		return nil, false
	}
	return cached.ConfigPaths, true
}

func saveCachedConfigs(opts DiscoverOptions, root string, configPaths []string) {
	if opts.CacheDir == "" {
		return
	}

	ignoreFiles := collectIgnoreFiles(root, configPaths)
	cached := cachedGraph{
		Root:        root,
		ConfigPaths: configPaths,
		IgnoreFiles: ignoreFiles,
		Fingerprint: fingerprintFiles(append(append([]string{}, configPaths...), ignoreFiles...)),
	}

	path := cacheFilePath(opts.CacheDir, root)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	// Cache writes are best-effort; a failed write just means rediscovery.
	_ = os.WriteFile(path, data, 0o600)
}

// fingerprintFiles hashes mtime and size of each path. A missing file
// contributes its absence, so deletions invalidate the cache too.
func fingerprintFiles(paths []string) string {
	h := sha256.New()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			fmt.Fprintf(h, "%s\x00missing\x00", p)
			continue
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00", p, info.ModTime().UnixNano(), info.Size())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// collectIgnoreFiles lists the .gitignore/.prekignore files along each
// project directory chain, the ones whose edits could change discovery.
func collectIgnoreFiles(root string, configPaths []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(dir string) {
		for _, name := range []string{".gitignore", PrekIgnoreFileName} {
			p := filepath.Join(dir, name)
			if !seen[p] {
				seen[p] = true
				if _, err := os.Stat(p); err == nil {
					out = append(out, p)
				}
			}
		}
	}

	add(root)
	for _, cfg := range configPaths {
		dir := filepath.Dir(cfg)
		for dir != root && len(dir) > len(root) {
			add(dir)
			dir = filepath.Dir(dir)
		}
	}
	return out
}
