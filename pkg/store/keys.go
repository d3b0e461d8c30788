package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

const lockRetryInterval = 50 * time.Millisecond

// RepoKey derives the content-addressed directory name for a cloned remote
// repository, keyed by (repo_url, rev) independent of any hook environment.
func RepoKey(url, rev string) string {
	sum := sha256.Sum256([]byte(url + "@" + rev))
	return hex.EncodeToString(sum[:])[:24]
}

// RepoKeyWithDeps derives the store key for a cloned repository whose
// environment setup additionally depends on a set of extra packages, so that
// two configs requesting different additional_dependencies for the same
// repo/rev don't collide on one clone.
func RepoKeyWithDeps(url, rev string, deps []string) string {
	if len(deps) == 0 {
		return RepoKey(url, rev)
	}
	sorted := append([]string(nil), deps...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(url + "@" + rev + "#" + strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])[:24]
}

// EnvKey derives the store key for a hook environment from
// (language, normalized version request, install-source hash, sorted deps).
// Equal keys share one environment across every config and repo that
// requests it.
func EnvKey(language, version, installHash string, deps []string) string {
	sorted := append([]string(nil), deps...)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join([]string{
		language, version, installHash, strings.Join(sorted, ","),
	}, "|")))
	return language + "-" + hex.EncodeToString(sum[:])[:24]
}

// ToolchainKey derives the store key for a downloaded language toolchain,
// one directory per exact version.
func ToolchainKey(language, version string) string {
	return language + "/" + version
}
