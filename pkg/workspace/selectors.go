package workspace

import (
	"os"
	"strings"

	"github.com/shaneholloman/prek/pkg/config"
)

// Environment variables supplying skip selectors; the primary name wins
// when both are set.
const (
	SkipEnvVar         = "PREK_SKIP"
	SkipEnvVarFallback = "SKIP"
)

// Selector matches hooks for inclusion or skipping. The three accepted
// forms are "<hook-id>", "<project-path>/", and "<project-path>:<hook-id>".
type Selector struct {
	// Path is the project path component, normalized; empty when the
	// selector names a bare hook id.
	Path string
	// HookID is the hook id or alias; empty for a bare project selector.
	HookID string

	raw string
}

// ParseSelector classifies one selector string.
func ParseSelector(s string) Selector {
	sel := Selector{raw: s}
	switch {
	case strings.HasSuffix(s, "/"):
		sel.Path = normalizeRel(s)
	case strings.Contains(s, ":"):
		parts := strings.SplitN(s, ":", 2)
		sel.Path = normalizeRel(parts[0])
		sel.HookID = parts[1]
	default:
		sel.HookID = s
	}
	return sel
}

// ParseSelectors classifies a list of selector strings.
func ParseSelectors(raw []string) []Selector {
	var out []Selector
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, ParseSelector(s))
		}
	}
	return out
}

// String returns the selector as written.
func (s Selector) String() string { return s.raw }

// matchesProjectPath reports whether the selector's path names p or an
// ancestor of p (selecting a project selects its descendants).
func (s Selector) matchesProjectPath(p *Project) bool {
	if s.Path == "" {
		return true
	}
	if s.Path == "." {
		return true
	}
	return p.RelPath == s.Path || strings.HasPrefix(p.RelPath+"/", s.Path+"/")
}

// matchesHook reports whether the selector matches the hook (by id or
// alias) within project p.
func (s Selector) matchesHook(p *Project, h config.Hook) bool {
	if !s.matchesProjectPath(p) {
		return false
	}
	if s.HookID == "" {
		return true
	}
	return s.HookID == h.ID || (h.Alias != "" && s.HookID == h.Alias)
}

// isProjectWide reports whether the selector covers a whole project rather
// than a single hook.
func (s Selector) isProjectWide() bool { return s.HookID == "" }

// Selection combines include and skip selectors for one run.
type Selection struct {
	Include []Selector
	Skip    []Selector
}

// NewSelection builds a Selection from CLI includes and skips, folding in
// the skip selectors from the environment.
func NewSelection(include, skip []string) Selection {
	return Selection{
		Include: ParseSelectors(include),
		Skip:    append(ParseSelectors(skip), skipSelectorsFromEnv()...),
	}
}

// skipSelectorsFromEnv reads the comma-split skip list from PREK_SKIP,
// falling back to SKIP.
func skipSelectorsFromEnv() []Selector {
	value, ok := os.LookupEnv(SkipEnvVar)
	if !ok {
		value, ok = os.LookupEnv(SkipEnvVarFallback)
	}
	if !ok || value == "" {
		return nil
	}
	return ParseSelectors(strings.Split(value, ","))
}

// ProjectSkipped reports whether a skip selector removes the whole project
// (and with it all of its descendants' eligibility through that selector).
func (sel Selection) ProjectSkipped(p *Project) bool {
	for _, s := range sel.Skip {
		if s.isProjectWide() && s.Path != "" && s.matchesProjectPath(p) {
			return true
		}
	}
	return false
}

// ProjectSelected reports whether any hook of p could run: either no
// include selectors were given, or at least one could match inside p.
func (sel Selection) ProjectSelected(p *Project) bool {
	if sel.ProjectSkipped(p) {
		return false
	}
	if len(sel.Include) == 0 {
		return true
	}
	for _, s := range sel.Include {
		if s.matchesProjectPath(p) {
			return true
		}
	}
	return false
}

// HookSelected applies include then skip selectors to one hook of p.
func (sel Selection) HookSelected(p *Project, h config.Hook) bool {
	if sel.ProjectSkipped(p) {
		return false
	}
	if len(sel.Include) > 0 {
		matched := false
		for _, s := range sel.Include {
			if s.matchesHook(p, h) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, s := range sel.Skip {
		if s.matchesHook(p, h) {
			return false
		}
	}
	return true
}

// ActiveProjects returns the set of projects with at least one selectable
// hook, used for file-ownership decisions.
func (sel Selection) ActiveProjects(w *Workspace) map[*Project]bool {
	active := make(map[*Project]bool, len(w.Projects))
	for _, p := range w.Projects {
		active[p] = sel.ProjectSelected(p)
	}
	return active
}
