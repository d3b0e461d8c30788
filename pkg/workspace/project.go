// Package workspace discovers the forest of projects inside one git
// repository and computes file ownership between nested projects.
package workspace

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/shaneholloman/prek/pkg/config"
)

// Project is one directory containing a config file. Immutable for the
// duration of a run.
type Project struct {
	// Path is the project directory, absolute.
	Path string
	// RelPath is the project directory relative to the workspace root,
	// "." for the root project, always forward-slashed.
	RelPath string
	// ConfigPath is the config file that created this project.
	ConfigPath string
	// Config is the parsed configuration.
	Config *config.Config
	// Position is the project's index in execution order (deepest first).
	Position int
}

// Orphan reports whether the project exclusively owns its files.
func (p *Project) Orphan() bool { return p.Config.Orphan }

// Contains reports whether the workspace-relative path lies under the
// project directory.
func (p *Project) Contains(relPath string) bool {
	if p.RelPath == "." {
		return true
	}
	return relPath == p.RelPath || strings.HasPrefix(relPath, p.RelPath+"/")
}

// depth orders projects deepest-first.
func (p *Project) depth() int {
	if p.RelPath == "." {
		return 0
	}
	return strings.Count(p.RelPath, "/") + 1
}

// Workspace is the project forest rooted at the shallowest discovered
// config, in deterministic execution order.
type Workspace struct {
	// Root is the workspace root directory, absolute.
	Root string
	// GitRoot is the enclosing repository root, absolute.
	GitRoot string
	// Projects is sorted in execution order: deepest first, siblings in
	// lexicographic path order, root last.
	Projects []*Project
}

// sortProjects establishes execution order and assigns positions.
func sortProjects(projects []*Project) {
	sort.Slice(projects, func(i, j int) bool {
		di, dj := projects[i].depth(), projects[j].depth()
		if di != dj {
			return di > dj
		}
		return projects[i].RelPath < projects[j].RelPath
	})
	for i, p := range projects {
		p.Position = i
	}
}

// ProjectAt returns the project rooted exactly at relPath, or nil.
func (w *Workspace) ProjectAt(relPath string) *Project {
	relPath = normalizeRel(relPath)
	for _, p := range w.Projects {
		if p.RelPath == relPath {
			return p
		}
	}
	return nil
}

// RootProject returns the project at the workspace root.
func (w *Workspace) RootProject() *Project {
	return w.ProjectAt(".")
}

// Owner returns the project owning the workspace-relative file path:
// the deepest project containing it among those either active (not skipped)
// or marked orphan. An orphan project hides its files from ancestors even
// when a selector later skips it. Returns nil when no active project owns
// the file.
func (w *Workspace) Owner(relPath string, active map[*Project]bool) *Project {
	var owner *Project
	for _, p := range w.Projects { // deepest first
		if !p.Contains(relPath) {
			continue
		}
		if active == nil || active[p] {
			owner = p
			break
		}
		if p.Orphan() {
			// Skipped orphan: the file is claimed and hidden, owned by no
			// active project.
			return nil
		}
	}
	return owner
}

// AssignFiles partitions workspace-relative file paths across projects.
// active limits which projects participate; nil means all.
func (w *Workspace) AssignFiles(files []string, active map[*Project]bool) map[*Project][]string {
	owned := make(map[*Project][]string)
	for _, f := range files {
		f = normalizeRel(f)
		if owner := w.Owner(f, active); owner != nil {
			owned[owner] = append(owned[owner], f)
		}
	}
	return owned
}

func normalizeRel(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	if p == "" {
		return "."
	}
	return strings.TrimSuffix(p, "/")
}
