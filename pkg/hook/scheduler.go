package hook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shaneholloman/prek/pkg/builtins"
	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/environment"
	"github.com/shaneholloman/prek/pkg/git"
	"github.com/shaneholloman/prek/pkg/hook/matching"
	"github.com/shaneholloman/prek/pkg/language"
	"github.com/shaneholloman/prek/pkg/repository"
	"github.com/shaneholloman/prek/pkg/store"
	"github.com/shaneholloman/prek/pkg/workspace"
)

// Concurrency-limit environment variables; the primary name wins.
const (
	NoConcurrencyEnvVar         = "PREK_NO_CONCURRENCY"
	NoConcurrencyEnvVarFallback = "PRE_COMMIT_NO_CONCURRENCY"
	ConcurrencyEnvVar           = "PREK_CONCURRENCY"
)

// Options are the run inputs resolved from CLI flags.
type Options struct {
	Stage       string
	AllFiles    bool
	Files       []string
	Directories []string
	FromRef     string
	ToRef       string
	LastCommit  bool
	FailFast    bool
	DryRun      bool
	Verbose     bool
	Selection   workspace.Selection
}

// StatusSink receives results as hooks finish; the formatting package
// provides the terminal implementation.
type StatusSink interface {
	ProjectHeader(relPath string, total int)
	StatusLine(r Result)
}

// Scheduler owns one run: it resolves candidate files, forms priority
// groups per project, and dispatches workers.
type Scheduler struct {
	Repo     *git.Repository
	Ws       *workspace.Workspace
	Store    *store.Store
	Envs     *environment.Manager
	Registry *language.Registry
	RepoOps  *repository.Operations
	Sink     StatusSink

	// Concurrency bounds simultaneous hook invocations; zero means the
	// CPU-derived default.
	Concurrency int

	// manifest cache per cloned repo path.
	mu        sync.Mutex
	manifests map[string][]config.Hook
}

// ConcurrencyLimit resolves the global limit: 1 when PREK_NO_CONCURRENCY
// (or its fallback) is set, an explicit PREK_CONCURRENCY value, else the
// logical CPU count.
func ConcurrencyLimit() int {
	if os.Getenv(NoConcurrencyEnvVar) != "" || os.Getenv(NoConcurrencyEnvVarFallback) != "" {
		return 1
	}
	if v := os.Getenv(ConcurrencyEnvVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// instance is one hook scheduled within one project.
type instance struct {
	project  *workspace.Project
	repo     config.Repo
	hook     config.Hook
	priority int
	files    []string // project-relative
	fastPath bool
}

// Run executes the whole workspace for opts and returns the aggregated
// summary. The working-tree guard brackets the entire run; restore happens
// on every exit path.
func (s *Scheduler) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Stage == "" {
		opts.Stage = "pre-commit"
	}
	if s.Concurrency <= 0 {
		s.Concurrency = ConcurrencyLimit()
	}
	s.manifests = make(map[string][]config.Hook)

	candidates, err := s.candidateFiles(opts)
	if err != nil {
		return nil, err
	}

	guard := NewGuard(s.Repo, filepath.Join(s.Store.Root(), "patches"), s.Ws.Root)
	if !opts.DryRun {
		if err := guard.Stash(candidates); err != nil {
			return nil, err
		}
	}

	summary := &Summary{}
	runErr := s.runProjects(ctx, opts, candidates, guard, summary)

	if !opts.DryRun {
		if restoreErr := guard.Restore(); restoreErr != nil {
			// A restore failure is fatal but never silent.
			if runErr == nil {
				runErr = restoreErr
			} else {
				runErr = fmt.Errorf("%w (additionally: %v)", restoreErr, runErr)
			}
		}
	}
	return summary, runErr
}

func (s *Scheduler) runProjects(
	ctx context.Context,
	opts Options,
	candidates []string,
	guard *Guard,
	summary *Summary,
) error {
	active := opts.Selection.ActiveProjects(s.Ws)
	owned := s.Ws.AssignFiles(candidates, active)

	stop := false
	for _, project := range s.Ws.Projects {
		if stop || !active[project] {
			continue
		}
		s.Sink.ProjectHeader(project.RelPath, len(s.Ws.Projects))

		instances, results, err := s.planProject(ctx, opts, project, owned[project])
		if err != nil {
			return err
		}
		summary.Results = append(summary.Results, results...)

		groups := groupByPriority(instances)
		for _, group := range groups {
			if err := ctx.Err(); err != nil {
				return err
			}

			groupResults := s.runGroup(ctx, opts, group, guard)
			summary.Results = append(summary.Results, groupResults...)

			if shouldFailFast(opts, project.Config, group, groupResults) {
				stop = true
				break
			}
		}
	}
	return nil
}

// planProject merges manifests, applies stage/selector/file filters, and
// returns runnable instances plus the results already decided (skips).
func (s *Scheduler) planProject(
	ctx context.Context,
	opts Options,
	project *workspace.Project,
	ownedFiles []string,
) ([]*instance, []Result, error) {
	projFiles := toProjectRelative(project, ownedFiles)
	matcher := matching.NewMatcher(project.Path)

	var instances []*instance
	var decided []Result
	position := 0

	for _, repo := range project.Config.Repos {
		for _, override := range repo.Hooks {
			flatIndex := position
			position++

			merged, fastPath, err := s.resolveHook(ctx, repo, override)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", project.ConfigPath, err)
			}

			if !opts.Selection.HookSelected(project, merged) {
				continue
			}
			if !merged.RunsAtStage(opts.Stage, project.Config.DefaultStages) {
				continue
			}

			inst := &instance{
				project:  project,
				repo:     repo,
				hook:     merged,
				priority: flatIndex,
				fastPath: fastPath,
			}
			if merged.Priority != nil {
				inst.priority = *merged.Priority
			}

			if repo.Kind() == config.KindMeta {
				// Meta hooks consume the project, not its files.
				inst.files = projFiles
				instances = append(instances, inst)
				continue
			}

			inst.files = matcher.FilesForHook(project.Config, merged, projFiles)
			if len(inst.files) == 0 && !merged.AlwaysRun {
				decided = append(decided, Result{
					HookID:   merged.ID,
					HookName: merged.Name,
					Project:  project.RelPath,
					Status:   Skipped,
				})
				continue
			}
			instances = append(instances, inst)
		}
	}

	for _, r := range decided {
		s.Sink.StatusLine(r)
	}
	return instances, decided, nil
}

// resolveHook completes a hook definition from its repo's manifest (remote),
// the builtin registry, or the meta set, and decides fast-path eligibility.
func (s *Scheduler) resolveHook(ctx context.Context, repo config.Repo, override config.Hook) (config.Hook, bool, error) {
	switch repo.Kind() {
	case config.KindLocal:
		return override, false, nil

	case config.KindMeta:
		manifest, ok := metaHookDefinition(override.ID)
		if !ok {
			return override, false, fmt.Errorf("unknown meta hook: %s", override.ID)
		}
		return config.MergeHook(manifest, override), false, nil

	case config.KindBuiltin:
		manifest, ok := builtinHookDefinition(override.ID)
		if !ok {
			return override, false, fmt.Errorf("unknown builtin hook: %s", override.ID)
		}
		// Explicit builtin entries dispatch natively by kind; the fastPath
		// flag is reserved for transparent substitution of remote hooks.
		return config.MergeHook(manifest, override), false, nil

	default:
		manifest, err := s.manifestHook(ctx, repo, override.ID)
		if err != nil {
			return override, false, err
		}
		merged := config.MergeHook(manifest, override)
		fastPath := repo.Repo == builtins.CanonicalRepoURL &&
			builtins.IsSupported(merged.ID) &&
			builtins.FastPathEnabled()
		return merged, fastPath, nil
	}
}

// manifestHook clones the repo (once per run) and looks up id in its
// manifest.
func (s *Scheduler) manifestHook(ctx context.Context, repo config.Repo, id string) (config.Hook, error) {
	repoPath, err := s.RepoOps.CloneOrUpdateRepo(ctx, repo)
	if err != nil {
		return config.Hook{}, err
	}

	s.mu.Lock()
	hooks, ok := s.manifests[repoPath]
	s.mu.Unlock()
	if !ok {
		hooks, err = config.LoadManifest(repoPath)
		if err != nil {
			return config.Hook{}, err
		}
		s.mu.Lock()
		s.manifests[repoPath] = hooks
		s.mu.Unlock()
	}

	for _, h := range hooks {
		if h.ID == id {
			return h, nil
		}
	}
	return config.Hook{}, fmt.Errorf("hook %s not present in repository %s", id, repo.Repo)
}

// builtinHookDefinition adapts a native hook's registration into a manifest
// entry for "builtin" repo entries.
func builtinHookDefinition(id string) (config.Hook, bool) {
	h, ok := builtins.Lookup(id)
	if !ok {
		return config.Hook{}, false
	}
	return config.Hook{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
		Language:    config.LanguageSystem,
		Types:       h.Types,
		TypesOr:     h.TypesOr,
	}, true
}

// groupByPriority forms the ascending priority groups of one project.
func groupByPriority(instances []*instance) [][]*instance {
	byPriority := map[int][]*instance{}
	var priorities []int
	for _, inst := range instances {
		if _, seen := byPriority[inst.priority]; !seen {
			priorities = append(priorities, inst.priority)
		}
		byPriority[inst.priority] = append(byPriority[inst.priority], inst)
	}
	sort.Ints(priorities)

	groups := make([][]*instance, 0, len(priorities))
	for _, p := range priorities {
		groups = append(groups, byPriority[p])
	}
	return groups
}

// runGroup dispatches one priority group: hooks run concurrently, with the
// semaphore bounding simultaneous invocations (not hooks, so one hook's
// batches and its group-mates share the same global budget). Afterwards the
// group's touched files are rehashed so modification is attributed to the
// group.
func (s *Scheduler) runGroup(ctx context.Context, opts Options, group []*instance, guard *Guard) []Result {
	sem := make(chan struct{}, s.Concurrency)
	results := make([]Result, len(group))

	var wg sync.WaitGroup
	for i, inst := range group {
		wg.Add(1)
		go func(i int, inst *instance) {
			defer wg.Done()
			results[i] = s.runInstance(ctx, opts, inst, sem)
		}(i, inst)
	}
	wg.Wait()

	if !opts.DryRun {
		touched := map[string]bool{}
		var union []string
		for _, inst := range group {
			for _, f := range inst.files {
				rel := fromProjectRelative(inst.project, f)
				if !touched[rel] {
					touched[rel] = true
					union = append(union, rel)
				}
			}
		}
		if modified := guard.ModifiedSince(union); len(modified) > 0 {
			for i := range results {
				if results[i].Status != Skipped {
					results[i].ModifiedFiles = true
				}
			}
		}
	}

	for _, r := range results {
		s.Sink.StatusLine(r)
	}
	return results
}

// shouldFailFast decides whether to stop starting new priority groups:
// config-level or CLI fail_fast stops on any failure; a per-hook fail_fast
// stops when that hook failed.
func shouldFailFast(opts Options, cfg *config.Config, group []*instance, results []Result) bool {
	for i, r := range results {
		if r.OK() {
			continue
		}
		if opts.FailFast || cfg.FailFast || group[i].hook.FailFast {
			return true
		}
	}
	return false
}

// candidateFiles resolves the run's file set, workspace-relative.
func (s *Scheduler) candidateFiles(opts Options) ([]string, error) {
	var files []string
	var err error

	switch {
	case opts.AllFiles:
		files, err = s.Repo.GetAllFiles()
	case len(opts.Files) > 0:
		files, err = s.explicitFiles(opts.Files)
	case opts.LastCommit:
		files, err = s.Repo.GetChangedFiles("HEAD~1", "HEAD")
	case opts.FromRef != "" || opts.ToRef != "":
		from, to := opts.FromRef, opts.ToRef
		if to == "" {
			to = "HEAD"
		}
		files, err = s.Repo.GetChangedFiles(from, to)
	default:
		files, err = s.stagedWithIntentToAdd()
	}
	if err != nil {
		return nil, err
	}

	files = s.toWorkspaceRelative(files)

	if len(opts.Directories) > 0 {
		files = intersectDirectories(files, opts.Directories)
	}
	return files, nil
}

func (s *Scheduler) stagedWithIntentToAdd() ([]string, error) {
	staged, err := s.Repo.GetStagedFiles()
	if err != nil {
		return nil, err
	}
	// Intent-to-add files join the candidate set so the large-file check
	// sees them; they have no index content yet.
	ita, err := s.Repo.IntentToAddFiles()
	if err != nil {
		return staged, nil //nolint:nilerr // intent-to-add listing is best-effort
	}
	seen := map[string]bool{}
	var out []string
	for _, f := range append(staged, ita...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// explicitFiles resolves --files arguments against the cwd and re-expresses
// them relative to the git root.
func (s *Scheduler) explicitFiles(args []string) ([]string, error) {
	var out []string
	for _, f := range args {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		rel, err := filepath.Rel(s.Repo.Root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("%s is outside the repository", f)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

// toWorkspaceRelative converts git-root-relative paths to workspace-root-
// relative ones, dropping files outside the workspace.
func (s *Scheduler) toWorkspaceRelative(files []string) []string {
	prefix, err := filepath.Rel(s.Repo.Root, s.Ws.Root)
	if err != nil || prefix == "." {
		return files
	}
	prefix = filepath.ToSlash(prefix) + "/"

	var out []string
	for _, f := range files {
		if strings.HasPrefix(f, prefix) {
			out = append(out, strings.TrimPrefix(f, prefix))
		}
	}
	return out
}

func intersectDirectories(files, dirs []string) []string {
	var out []string
	for _, f := range files {
		for _, d := range dirs {
			d = strings.TrimSuffix(filepath.ToSlash(d), "/")
			if d == "." || f == d || strings.HasPrefix(f, d+"/") {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func toProjectRelative(p *workspace.Project, files []string) []string {
	if p.RelPath == "." {
		return files
	}
	prefix := p.RelPath + "/"
	var out []string
	for _, f := range files {
		out = append(out, strings.TrimPrefix(f, prefix))
	}
	return out
}

func fromProjectRelative(p *workspace.Project, file string) string {
	if p.RelPath == "." {
		return file
	}
	return p.RelPath + "/" + file
}
