package hook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/shaneholloman/prek/pkg/builtins"
	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/language"
)

// invocationTimeout bounds one hook subprocess. Not configurable; a timeout
// is reported as a failure with the elapsed time.
const invocationTimeout = 10 * time.Minute

// runInstance executes one hook and aggregates its batches into a Result.
// sem is the group's concurrency semaphore, shared so parallel batches of
// one hook also respect the global limit.
func (s *Scheduler) runInstance(ctx context.Context, opts Options, inst *instance, sem chan struct{}) Result {
	result := Result{
		HookID:    inst.hook.ID,
		HookName:  inst.hook.Name,
		Project:   inst.project.RelPath,
		FileCount: len(inst.files),
	}

	if opts.DryRun {
		result.Status = Skipped
		result.Output = []byte(fmt.Sprintf("(dry run) would run on %d file(s)", len(inst.files)))
		return result
	}

	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	switch {
	case inst.repo.Kind() == config.KindMeta:
		sem <- struct{}{}
		code, out := s.runMeta(inst)
		<-sem
		result.Output = out
		result.Status = statusFromExit(code)

	case inst.fastPath || inst.repo.Kind() == config.KindBuiltin:
		sem <- struct{}{}
		code, out := s.runBuiltin(ctx, inst)
		<-sem
		result.Output = out
		result.Status = statusFromExit(code)

	default:
		s.runSubprocesses(ctx, inst, sem, &result)
	}

	s.appendLogFile(inst.hook, result.Output)
	return result
}

func statusFromExit(code int) Status {
	if code == 0 {
		return Passed
	}
	return Failed
}

// runBuiltin dispatches a native implementation; for fast-path hooks the
// environment was still provisioned, but the subprocess is never spawned.
func (s *Scheduler) runBuiltin(ctx context.Context, inst *instance) (int, []byte) {
	h, ok := builtins.Lookup(inst.hook.ID)
	if !ok {
		return 1, []byte(fmt.Sprintf("no native implementation for %s", inst.hook.ID))
	}

	if inst.fastPath {
		// Keep the fallback environment warm so PREK_NO_FAST_PATH flips
		// back without a reinstall. Failures here don't fail the hook.
		go s.provisionFallbackEnv(context.WithoutCancel(ctx), inst)
	}

	files := inst.files
	if !inst.hook.ShouldPassFilenames() {
		files = nil
	}
	return h.Run(&builtins.Context{
		Files:   files,
		Args:    inst.hook.Args,
		WorkDir: inst.project.Path,
		Repo:    s.Repo,
	})
}

func (s *Scheduler) provisionFallbackEnv(ctx context.Context, inst *instance) {
	repoPath, err := s.RepoOps.CloneOrUpdateRepo(ctx, inst.repo)
	if err != nil {
		return
	}
	version := config.ResolveEffectiveLanguageVersion(inst.hook, inst.project.Config)
	_, _ = s.Envs.EnsureEnv(ctx, inst.hook, repoPath, version)
}

// runSubprocesses provisions the hook's environment and runs it once per
// batch, respecting require_serial and pass_filenames.
func (s *Scheduler) runSubprocesses(ctx context.Context, inst *instance, sem chan struct{}, result *Result) {
	env, backend, err := s.prepareEnv(ctx, inst)
	if err != nil {
		if errors.Is(err, language.ErrToolchainNotFound) || errors.Is(err, language.ErrNoDownload) {
			result.Status = Unimplemented
			result.Output = []byte(err.Error())
			return
		}
		result.Status = Failed
		result.Output = []byte(err.Error())
		return
	}

	// The native env-less backends run in-process; they receive absolute
	// paths since no subprocess working directory applies.
	if native, ok := backend.(language.NativeBackend); ok {
		var files []string
		if inst.hook.ShouldPassFilenames() {
			for _, f := range inst.files {
				files = append(files, filepath.Join(inst.project.Path, f))
			}
		}
		sem <- struct{}{}
		code, out := native.RunNative(inst.hook, env.RepoPath, files)
		<-sem
		result.Status = statusFromExit(code)
		result.Output = out
		return
	}

	cmd, err := backend.BuildCommand(env, inst.hook, inst.files)
	if err != nil {
		result.Status = Failed
		result.Output = []byte(err.Error())
		return
	}

	var batches [][]string
	if inst.hook.ShouldPassFilenames() {
		// The platform limit already accounts for the environment; only
		// the fixed argv prefix is charged here.
		batches = batchFiles(inst.files, argvLen(cmd.Argv))
	} else {
		batches = [][]string{nil}
	}

	var mu sync.Mutex
	var output bytes.Buffer
	failed, timedOut := false, false

	runBatch := func(batch []string) {
		sem <- struct{}{}
		code, out, batchTimedOut := s.execBatch(ctx, inst, cmd, batch)
		<-sem

		mu.Lock()
		defer mu.Unlock()
		output.Write(out)
		if code != 0 {
			failed = true
		}
		if batchTimedOut {
			timedOut = true
		}
	}

	if inst.hook.RequireSerial || len(batches) == 1 {
		// One in-flight invocation at a time; other hooks in the group
		// still run concurrently.
		for _, batch := range batches {
			runBatch(batch)
		}
	} else {
		var wg sync.WaitGroup
		for _, batch := range batches {
			wg.Add(1)
			go func(batch []string) {
				defer wg.Done()
				runBatch(batch)
			}(batch)
		}
		wg.Wait()
	}

	result.Output = output.Bytes()
	result.TimedOut = timedOut
	if failed {
		result.Status = Failed
	} else {
		result.Status = Passed
	}
}

// prepareEnv clones the hook repo (remote only) and ensures its environment.
func (s *Scheduler) prepareEnv(ctx context.Context, inst *instance) (*language.Env, language.Backend, error) {
	backend, err := s.Registry.Get(inst.hook.Language)
	if err != nil {
		return nil, nil, fmt.Errorf("hook %s: %w", inst.hook.ID, err)
	}

	repoPath := ""
	if inst.repo.IsRemote() {
		repoPath, err = s.RepoOps.CloneOrUpdateRepoWithDeps(ctx, inst.repo, inst.hook.AdditionalDeps)
		if err != nil {
			return nil, nil, err
		}
	}

	version := config.ResolveEffectiveLanguageVersion(inst.hook, inst.project.Config)
	env, err := s.Envs.EnsureEnv(ctx, inst.hook, repoPath, version)
	if err != nil {
		return nil, nil, err
	}
	return env, backend, nil
}

// execBatch spawns one hook subprocess for one batch of files.
func (s *Scheduler) execBatch(ctx context.Context, inst *instance, cmd language.Command, batch []string) (int, []byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, invocationTimeout)
	defer cancel()

	argv := append(append([]string{}, cmd.Argv...), batch...)
	child := exec.CommandContext(ctx, argv[0], argv[1:]...) // #nosec G204 -- hook command from config
	child.Dir = inst.project.Path
	if cmd.Dir != "" {
		child.Dir = cmd.Dir
	}
	child.Stdin = nil

	// Child environment: process env, then the backend's env, then the
	// hook's env map on top. TERM=dumb prevents capability-probe hangs.
	env := os.Environ()
	env = append(env, "TERM=dumb")
	for k, v := range cmd.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range inst.hook.Env {
		env = append(env, k+"="+v)
	}
	child.Env = env

	var out bytes.Buffer
	child.Stdout = &out
	child.Stderr = &out

	start := time.Now()
	err := child.Run()
	if err == nil {
		return 0, out.Bytes(), false
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		fmt.Fprintf(&out, "\nhook timed out after %.1fs\n", time.Since(start).Seconds())
		return 1, out.Bytes(), true
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), out.Bytes(), false
	}
	fmt.Fprintf(&out, "\nfailed to run %s: %v\n", argv[0], err)
	return 1, out.Bytes(), false
}

func argvLen(argv []string) int {
	n := 0
	for _, a := range argv {
		n += len(a) + 1
	}
	return n
}

// appendLogFile mirrors a hook's output into its log_file when configured.
func (s *Scheduler) appendLogFile(h config.Hook, output []byte) {
	if h.LogFile == "" || len(output) == 0 {
		return
	}
	f, err := os.OpenFile(h.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- user-configured log path
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	_, _ = f.Write(output)
}
