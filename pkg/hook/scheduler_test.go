package hook

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/environment"
	"github.com/shaneholloman/prek/pkg/git"
	"github.com/shaneholloman/prek/pkg/language"
	"github.com/shaneholloman/prek/pkg/repository"
	"github.com/shaneholloman/prek/pkg/store"
	"github.com/shaneholloman/prek/pkg/workspace"
)

// collectSink gathers printed results for assertions.
type collectSink struct {
	mu      sync.Mutex
	results []Result
}

func (c *collectSink) ProjectHeader(string, int) {}
func (c *collectSink) StatusLine(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=t@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=t@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func setupRepo(t *testing.T, cfg string) (string, *Scheduler, *collectSink) {
	t.Helper()
	dir := t.TempDir()
	gitCmd(t, dir, "init", "-q")

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.LegacyConfigFileName), []byte(cfg), 0o644))
	gitCmd(t, dir, "add", config.LegacyConfigFileName)
	gitCmd(t, dir, "commit", "-q", "-m", "init")

	repo, err := git.NewRepository(dir)
	require.NoError(t, err)

	ws, err := workspace.Discover(workspace.DiscoverOptions{Cwd: dir})
	require.NoError(t, err)

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	reg := language.NewRegistry(nil)
	sink := &collectSink{}
	sched := &Scheduler{
		Repo:     repo,
		Ws:       ws,
		Store:    s,
		Envs:     environment.NewManager(s, reg),
		Registry: reg,
		RepoOps:  repository.NewRepositoryOperations(s),
		Sink:     sink,
	}
	return dir, sched, sink
}

func stage(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	gitCmd(t, dir, "add", name)
}

const builtinFixerConfig = `repos:
  - repo: builtin
    hooks:
      - id: trailing-whitespace
`

func TestRunFixerModifiesThenPasses(t *testing.T) {
	dir, sched, _ := setupRepo(t, builtinFixerConfig)
	stage(t, dir, "a.txt", "hi   \n")

	summary, err := sched.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExitCode())

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))

	// Re-stage and run again: clean.
	gitCmd(t, dir, "add", "a.txt")
	sched.Sink = &collectSink{}
	summary, err = sched.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())
}

const typedHookConfig = `repos:
  - repo: local
    hooks:
      - id: count-py
        name: count python files
        entry: /bin/true
        language: system
        types: [python]
`

func TestTypeFilterSelectsOnlyMatchingFiles(t *testing.T) {
	dir, sched, sink := setupRepo(t, typedHookConfig)
	stage(t, dir, "src/a.py", "print()\n")
	stage(t, dir, "docs/b.md", "# doc\n")

	summary, err := sched.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())

	require.Len(t, sink.results, 1)
	assert.Equal(t, "count-py", sink.results[0].HookID)
	assert.Equal(t, 1, sink.results[0].FileCount)
}

const parallelSleepConfig = `repos:
  - repo: local
    hooks:
      - id: sleep-a
        name: sleep a
        entry: sleep 0.2
        language: system
        always_run: true
        pass_filenames: false
        priority: 10
      - id: sleep-b
        name: sleep b
        entry: sleep 0.2
        language: system
        always_run: true
        pass_filenames: false
        priority: 10
`

func TestSharedPriorityRunsConcurrently(t *testing.T) {
	dir, sched, _ := setupRepo(t, parallelSleepConfig)
	stage(t, dir, "x.txt", "x\n")
	sched.Concurrency = 4

	start := time.Now()
	summary, err := sched.Run(context.Background(), Options{})
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())
	assert.Less(t, elapsed, 380*time.Millisecond, "hooks sharing a priority must overlap")
}

const orderedPriorityConfig = `repos:
  - repo: local
    hooks:
      - id: second
        name: second
        entry: sh -c 'echo second >> order.log'
        language: system
        always_run: true
        pass_filenames: false
        priority: 5
      - id: first
        name: first
        entry: sh -c 'echo first >> order.log'
        language: system
        always_run: true
        pass_filenames: false
        priority: 1
`

func TestPriorityGroupsRunInAscendingOrder(t *testing.T) {
	dir, sched, _ := setupRepo(t, orderedPriorityConfig)
	stage(t, dir, "x.txt", "x\n")

	_, err := sched.Run(context.Background(), Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "order.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

const failFastConfig = `fail_fast: true
repos:
  - repo: local
    hooks:
      - id: boom
        name: boom
        entry: /bin/false
        language: system
        always_run: true
        pass_filenames: false
        priority: 0
      - id: never
        name: never
        entry: sh -c 'touch never-ran'
        language: system
        always_run: true
        pass_filenames: false
        priority: 1
`

func TestFailFastStopsLaterGroups(t *testing.T) {
	dir, sched, _ := setupRepo(t, failFastConfig)
	stage(t, dir, "x.txt", "x\n")

	summary, err := sched.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExitCode())

	_, statErr := os.Stat(filepath.Join(dir, "never-ran"))
	assert.True(t, os.IsNotExist(statErr), "priority group after a fail_fast failure must not start")
}

func TestWorktreeRestoreAroundFailure(t *testing.T) {
	dir, sched, _ := setupRepo(t, failFastConfig)

	// Staged change S plus unstaged change U on the same file.
	stage(t, dir, "f.txt", "staged\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("staged\nunstaged\n"), 0o644))

	summary, err := sched.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExitCode())

	// Working tree has S+U back; the index still holds S.
	data, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "staged\nunstaged\n", string(data))

	repo, _ := git.NewRepository(dir)
	stagedContent, err := repo.GetStagedFileContent("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "staged\n", string(stagedContent))
}

const identityConfig = `repos:
  - repo: meta
    hooks:
      - id: identity
`

func TestMetaIdentityEchoesFiles(t *testing.T) {
	dir, sched, sink := setupRepo(t, identityConfig)
	stage(t, dir, "one.txt", "1\n")
	stage(t, dir, "two.txt", "2\n")

	summary, err := sched.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())

	require.NotEmpty(t, sink.results)
	out := string(sink.results[0].Output)
	assert.Contains(t, out, "one.txt")
	assert.Contains(t, out, "two.txt")
}

func TestDryRunExecutesNothing(t *testing.T) {
	dir, sched, sink := setupRepo(t, builtinFixerConfig)
	stage(t, dir, "a.txt", "hi   \n")

	summary, err := sched.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())

	data, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	assert.Equal(t, "hi   \n", string(data), "dry run must not modify files")
	require.NotEmpty(t, sink.results)
	assert.Equal(t, Skipped, sink.results[0].Status)
}

func TestBatchFilesRespectsLimitAndCoversAll(t *testing.T) {
	files := make([]string, 1000)
	for i := range files {
		files[i] = filepath.Join("some", "deep", "path", "file-", string(rune('a'+i%26))) + ".txt"
	}

	batches := batchFiles(files, 200)
	require.NotEmpty(t, batches)

	limit := maxCommandLength()
	var total int
	for _, b := range batches {
		size := 200
		for _, f := range b {
			size += len(f) + 2
		}
		assert.LessOrEqual(t, size, limit)
		total += len(b)
	}
	assert.Equal(t, len(files), total, "union of batches must equal the input exactly once")

	assert.Nil(t, batchFiles(nil, 10))
}

func TestGroupByPriority(t *testing.T) {
	p := func(n int) *instance { return &instance{priority: n} }
	groups := groupByPriority([]*instance{p(5), p(1), p(5), p(0)})
	require.Len(t, groups, 3)
	assert.Equal(t, 0, groups[0][0].priority)
	assert.Equal(t, 1, groups[1][0].priority)
	assert.Len(t, groups[2], 2)
}

func TestSelectionSkipsHook(t *testing.T) {
	dir, sched, sink := setupRepo(t, typedHookConfig)
	stage(t, dir, "src/a.py", "print()\n")

	sel := workspace.NewSelection(nil, []string{"count-py"})
	summary, err := sched.Run(context.Background(), Options{Selection: sel})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())
	assert.Empty(t, sink.results)
}

func TestConcurrencyLimitEnvVars(t *testing.T) {
	t.Setenv(NoConcurrencyEnvVar, "1")
	assert.Equal(t, 1, ConcurrencyLimit())

	os.Unsetenv(NoConcurrencyEnvVar)
	t.Setenv(NoConcurrencyEnvVarFallback, "1")
	assert.Equal(t, 1, ConcurrencyLimit())

	os.Unsetenv(NoConcurrencyEnvVarFallback)
	t.Setenv(ConcurrencyEnvVar, "3")
	assert.Equal(t, 3, ConcurrencyLimit())
}
