package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/git"
	"github.com/shaneholloman/prek/pkg/hook"
	"github.com/shaneholloman/prek/pkg/workspace"
)

// TryRepoCommand runs the hooks of an arbitrary repository against this
// one, for developing new hooks without editing a config.
type TryRepoCommand struct{}

// TryRepoOptions holds the try-repo flags; the first positional is the
// repository URL or local path.
type TryRepoOptions struct {
	CommonOptions
	Rev      string `long:"rev"       description:"Revision to try (default: HEAD of a local repository path; required for remote URLs)"`
	AllFiles bool   `long:"all-files" short:"a" description:"Run on all tracked files"`
}

// Run executes try-repo.
func (c *TryRepoCommand) Run(args []string) int {
	var opts TryRepoOptions
	remaining, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}
	if len(remaining) == 0 {
		fmt.Fprintln(os.Stderr, "Error: try-repo requires a repository URL")
		return 1
	}

	exit, err := tryRepo(&opts, remaining[0], remaining[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return exit
}

func tryRepo(opts *TryRepoOptions, url string, hookIDs []string) (int, error) {
	rc, err := openRuntime(&opts.CommonOptions, false)
	if err != nil {
		return 1, err
	}

	rc.Repo, err = git.NewRepository("")
	if err != nil {
		return 1, err
	}
	ctx := context.Background()

	rev := opts.Rev
	if rev == "" {
		// Try the work in progress: resolve the tip of the repo itself.
		repoPath := url
		if abs, absErr := filepath.Abs(url); absErr == nil {
			if _, statErr := os.Stat(filepath.Join(abs, ".git")); statErr == nil {
				repoPath = abs
			}
		}
		rev, err = git.ResolveCommit(ctx, repoPath, "HEAD")
		if err != nil {
			return 1, fmt.Errorf("failed to resolve a revision for %s (pass --rev): %w", url, err)
		}
	}

	repoEntry := config.Repo{Repo: url, Rev: rev}
	repoPath, err := rc.RepoOps.CloneOrUpdateRepo(ctx, repoEntry)
	if err != nil {
		return 1, err
	}

	manifest, err := config.LoadManifest(repoPath)
	if err != nil {
		return 1, err
	}
	for _, h := range manifest {
		if len(hookIDs) == 0 || containsString(hookIDs, h.ID) {
			repoEntry.Hooks = append(repoEntry.Hooks, config.Hook{ID: h.ID})
		}
	}
	if len(repoEntry.Hooks) == 0 {
		return 1, fmt.Errorf("no matching hooks in %s", url)
	}

	// A synthetic single-project workspace rooted at the git root.
	cfg := &config.Config{Repos: []config.Repo{repoEntry}}
	ws := &workspace.Workspace{
		Root:    rc.Repo.Root,
		GitRoot: rc.Repo.Root,
		Projects: []*workspace.Project{{
			Path:       rc.Repo.Root,
			RelPath:    ".",
			ConfigPath: filepath.Join(rc.Repo.Root, "(try-repo)"),
			Config:     cfg,
		}},
	}
	rc.Ws = ws

	fmt.Printf("Using rev: %s\n", rev)

	printer := opts.Printer()
	sched := &hook.Scheduler{
		Repo:     rc.Repo,
		Ws:       ws,
		Store:    rc.Store,
		Envs:     rc.Envs,
		Registry: rc.Registry,
		RepoOps:  rc.RepoOps,
		Sink:     printer,
	}
	summary, err := sched.Run(ctx, hook.Options{AllFiles: opts.AllFiles})
	if err != nil {
		return 1, err
	}
	printer.Summary(summary)
	return summary.ExitCode(), nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Help returns the try-repo help text.
func (c *TryRepoCommand) Help() string {
	var opts TryRepoOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] REPO [HOOK...]"
	base := &BaseCommand{
		Name:        "try-repo",
		Description: "Run the hooks of a repository without adding it to any config.",
		Examples: []Example{
			{Command: "prek try-repo ../my-hooks --all-files", Description: "Try a local hook repo"},
		},
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *TryRepoCommand) Synopsis() string { return "Try the hooks of a repository" }

// TryRepoCommandFactory creates the command.
func TryRepoCommandFactory() (cli.Command, error) {
	return &TryRepoCommand{}, nil
}
