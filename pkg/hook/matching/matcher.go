// Package matching decides which candidate files reach which hooks. The
// composition law: a file is passed to a hook iff it satisfies the project's
// include AND NOT the project's exclude AND the hook's include AND NOT the
// hook's exclude AND all of types AND any of types_or AND none of
// exclude_types.
package matching

import (
	"sync"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/identify"
)

// Matcher filters files for hooks, memoizing identifier results so a file
// shared by many hooks is classified once.
type Matcher struct {
	// WorkDir is the directory candidate paths are relative to.
	WorkDir string

	mu   sync.Mutex
	tags map[string]identify.Tags
}

// NewMatcher builds a Matcher rooted at workDir.
func NewMatcher(workDir string) *Matcher {
	return &Matcher{WorkDir: workDir, tags: make(map[string]identify.Tags)}
}

// Tags returns the cached identifier tags for a candidate path.
func (m *Matcher) Tags(file string) identify.Tags {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tags[file]; ok {
		return t
	}
	path := file
	if m.WorkDir != "" {
		path = m.WorkDir + "/" + file
	}
	t := identify.Identify(path)
	m.tags[file] = t
	return t
}

// FilesForHook applies the full composition law for one hook over the
// project-filtered candidates.
func (m *Matcher) FilesForHook(project *config.Config, hook config.Hook, candidates []string) []string {
	var out []string
	for _, f := range candidates {
		if m.Matches(project, hook, f) {
			out = append(out, f)
		}
	}
	return out
}

// Matches evaluates one (hook, file) pair.
func (m *Matcher) Matches(project *config.Config, hook config.Hook, file string) bool {
	if project != nil {
		if !project.Files.IsZero() && !project.Files.Matches(file) {
			return false
		}
		if !project.Exclude.IsZero() && project.Exclude.Matches(file) {
			return false
		}
	}
	if !hook.Files.IsZero() && !hook.Files.Matches(file) {
		return false
	}
	if !hook.Exclude.IsZero() && hook.Exclude.Matches(file) {
		return false
	}

	tags := m.Tags(file)
	if !tags.HasAll(hook.EffectiveTypes()) {
		return false
	}
	if !tags.HasAny(hook.TypesOr) {
		return false
	}
	return tags.HasNone(hook.ExcludeTypes)
}

// ProjectFiles applies only the project-level include/exclude, used when
// reporting which files a project claims.
func ProjectFiles(project *config.Config, files []string) []string {
	var out []string
	for _, f := range files {
		if !project.Files.IsZero() && !project.Files.Matches(f) {
			continue
		}
		if !project.Exclude.IsZero() && project.Exclude.Matches(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}
