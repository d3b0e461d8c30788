package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/git"
)

// DiscoverOptions controls workspace discovery.
type DiscoverOptions struct {
	// Cwd is the starting directory; empty means the process cwd.
	Cwd string
	// ConfigPath pins the workspace to a single explicit config file
	// (--config), bypassing the upward walk.
	ConfigPath string
	// ToolVersion is checked against each config's minimum_prek_version.
	ToolVersion string
	// CacheDir enables the discovery cache when non-empty.
	CacheDir string
	// Refresh skips the cache lookup (--refresh).
	Refresh bool
}

// Discover locates the workspace: walk upward from cwd to the git root
// looking for config files, root the workspace at the shallowest config at
// or above cwd, then walk downward collecting every nested project.
func Discover(opts DiscoverOptions) (*Workspace, error) {
	cwd := opts.Cwd
	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}
	cwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", opts.Cwd, err)
	}

	gitRoot, err := git.FindGitRoot(cwd)
	if err != nil {
		return nil, err
	}

	if opts.ConfigPath != "" {
		return singleProjectWorkspace(gitRoot, opts)
	}

	root := findWorkspaceRoot(cwd, gitRoot)
	if root == "" {
		return nil, fmt.Errorf("no configuration found in %s or any parent up to %s", cwd, gitRoot)
	}

	w := &Workspace{Root: root, GitRoot: gitRoot}

	configPaths, fromCache := lookupCachedConfigs(opts, root)
	if !fromCache {
		configPaths, err = scanForConfigs(root)
		if err != nil {
			return nil, err
		}
		saveCachedConfigs(opts, root, configPaths)
	}

	for _, cfgPath := range configPaths {
		project, err := loadProject(root, cfgPath, opts.ToolVersion)
		if err != nil {
			return nil, err
		}
		w.Projects = append(w.Projects, project)
	}

	sortProjects(w.Projects)
	return w, nil
}

// findWorkspaceRoot returns the directory of the shallowest config file at
// or above cwd, never above the git root, or "" when none exists.
func findWorkspaceRoot(cwd, gitRoot string) string {
	root := ""
	dir := cwd
	for {
		if config.FindConfigFile(dir) != "" {
			root = dir
		}
		if dir == gitRoot {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return root
}

func singleProjectWorkspace(gitRoot string, opts DiscoverOptions) (*Workspace, error) {
	cfgPath, err := filepath.Abs(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	if _, err := os.Stat(cfgPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s", opts.ConfigPath)
	}

	root := filepath.Dir(cfgPath)
	w := &Workspace{Root: root, GitRoot: gitRoot}
	project, err := loadProject(root, cfgPath, opts.ToolVersion)
	if err != nil {
		return nil, err
	}
	w.Projects = []*Project{project}
	sortProjects(w.Projects)
	return w, nil
}

func loadProject(root, cfgPath, toolVersion string) (*Project, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.CheckMinimumVersion(toolVersion, cfg.MinimumVersion); err != nil {
		return nil, fmt.Errorf("%s: %w", cfgPath, err)
	}

	dir := filepath.Dir(cfgPath)
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return nil, fmt.Errorf("project %s escapes workspace root: %w", dir, err)
	}
	return &Project{
		Path:       dir,
		RelPath:    normalizeRel(rel),
		ConfigPath: cfgPath,
		Config:     cfg,
	}, nil
}

// scanForConfigs walks downward from root collecting config file paths.
// Skipped subtrees: dotted directories, cookiecutter templates ({{...}}),
// nested git repositories (submodules), and anything matched by .gitignore
// or .prekignore.
func scanForConfigs(root string) ([]string, error) {
	matcher := &ignoreMatcher{}
	var configs []string

	var walk func(dir string) error
	walk = func(dir string) error {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return err
		}
		rel = normalizeRel(rel)

		for _, name := range []string{".gitignore", PrekIgnoreFileName} {
			if err := matcher.loadIgnoreFile(filepath.Join(dir, name), rel); err != nil {
				return fmt.Errorf("failed to read %s in %s: %w", name, dir, err)
			}
		}

		if cfgPath := config.FindConfigFile(dir); cfgPath != "" {
			configs = append(configs, cfgPath)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			if strings.HasPrefix(name, "{{") && strings.HasSuffix(name, "}}") {
				continue
			}
			sub := filepath.Join(dir, name)
			if isNestedGitRepo(sub) {
				continue
			}
			subRel := name
			if rel != "." {
				subRel = rel + "/" + name
			}
			if matcher.Ignored(subRel, true) {
				continue
			}
			if err := walk(sub); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return configs, nil
}

// isNestedGitRepo reports whether dir is itself a git checkout (a submodule
// has a .git file; a plain nested repo has a .git directory).
func isNestedGitRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
