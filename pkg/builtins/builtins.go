// Package builtins provides native implementations of the fast-path hook
// set. Each hook is a pure function over its candidate files; the scheduler
// substitutes them for subprocess invocations when a config points at the
// canonical upstream hook repository, and runs them directly for "builtin"
// repo entries.
package builtins

import (
	"os"

	"github.com/shaneholloman/prek/pkg/git"
)

// CanonicalRepoURL is the upstream hook repository whose hooks the native
// implementations mirror. The fast path matches this URL exactly and
// ignores rev.
const CanonicalRepoURL = "https://github.com/pre-commit/pre-commit-hooks"

// NoFastPathEnvVar disables the transparent substitution, forcing the
// provisioned subprocess implementation.
const NoFastPathEnvVar = "PREK_NO_FAST_PATH"

// Context carries one invocation's inputs.
type Context struct {
	// Files are the candidate paths, relative to WorkDir.
	Files []string
	// Args is the hook's args list.
	Args []string
	// WorkDir is the project directory the paths are relative to.
	WorkDir string
	// Repo is the enclosing git repository; nil in contexts without one.
	Repo *git.Repository
}

// RunFunc executes one built-in hook. Fixers return non-zero when any file
// was modified, so the user re-stages.
type RunFunc func(ctx *Context) (int, []byte)

// Hook is one native hook definition.
type Hook struct {
	ID          string
	Name        string
	Description string
	// Types/TypesOr are the default file filters, mirroring the
	// upstream manifest entry.
	Types   []string
	TypesOr []string
	Run     RunFunc
}

// registry is the closed set of native hooks, populated by the per-hook
// files' init functions.
var registry = map[string]Hook{}

func register(h Hook) {
	registry[h.ID] = h
}

// Lookup returns the native hook for id.
func Lookup(id string) (Hook, bool) {
	h, ok := registry[id]
	return h, ok
}

// IsSupported reports whether id has a native implementation.
func IsSupported(id string) bool {
	_, ok := registry[id]
	return ok
}

// IDs returns the supported hook ids in sorted order.
func IDs() []string {
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// FastPathEnabled reports whether transparent substitution is active.
func FastPathEnabled() bool {
	return os.Getenv(NoFastPathEnvVar) == ""
}
