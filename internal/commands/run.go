package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/shaneholloman/prek/pkg/hook"
	"github.com/shaneholloman/prek/pkg/workspace"
)

// RunCommand executes hooks against the candidate file set.
type RunCommand struct{}

// RunOptions holds the run command's flags; positional arguments are
// include selectors.
type RunOptions struct {
	CommonOptions
	AllFiles          bool     `long:"all-files"  short:"a" description:"Run on all tracked files in the workspace"`
	Files             []string `long:"files"                description:"Specific file paths to run on"`
	Directory         []string `long:"directory"  short:"d" description:"Limit candidates to this directory (repeatable)"`
	FromRef           string   `long:"from-ref"             description:"Diff lower bound ref"`
	ToRef             string   `long:"to-ref"               description:"Diff upper bound ref"`
	LastCommit        bool     `long:"last-commit"          description:"Run on files changed by the last commit"`
	FailFast          bool     `long:"fail-fast"            description:"Stop scheduling new priority groups after a failure"`
	DryRun            bool     `long:"dry-run"              description:"Show what would run without executing"`
	HookStage         string   `long:"hook-stage"           description:"Stage to run" default:"pre-commit"`
	ShowDiffOnFailure bool     `long:"show-diff-on-failure" description:"Print the diff when hooks modify files"`
	Skip              []string `long:"skip"                 description:"Skip selector (repeatable)"`
}

// Run executes the run command.
func (c *RunCommand) Run(args []string) int {
	var opts RunOptions
	selectors, err := c.ParseArgsWithHelp(&opts, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}

	exit, err := runHooks(&opts, selectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return exit
}

func runHooks(opts *RunOptions, selectors []string) (int, error) {
	rc, err := openRuntime(&opts.CommonOptions, true)
	if err != nil {
		return 1, err
	}

	printer := opts.Printer()
	sched := &hook.Scheduler{
		Repo:     rc.Repo,
		Ws:       rc.Ws,
		Store:    rc.Store,
		Envs:     rc.Envs,
		Registry: rc.Registry,
		RepoOps:  rc.RepoOps,
		Sink:     printer,
	}

	// Ctrl-C stops scheduling new batches; in-flight hooks drain and the
	// working-tree guard still restores.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	summary, err := sched.Run(ctx, hook.Options{
		Stage:       opts.HookStage,
		AllFiles:    opts.AllFiles,
		Files:       opts.Files,
		Directories: opts.Directory,
		FromRef:     opts.FromRef,
		ToRef:       opts.ToRef,
		LastCommit:  opts.LastCommit,
		FailFast:    opts.FailFast,
		DryRun:      opts.DryRun,
		Verbose:     len(opts.Verbose) > 0,
		Selection:   workspace.NewSelection(selectors, opts.Skip),
	})
	if err != nil {
		return 1, err
	}

	printer.Summary(summary)
	exit := summary.ExitCode()

	if exit != 0 && opts.ShowDiffOnFailure {
		showDiff(rc)
	}
	return exit, nil
}

func showDiff(rc *runtimeContext) {
	out, err := rc.Repo.DiffOutput()
	if err == nil && len(out) > 0 {
		fmt.Println(string(out))
	}
}

// Help returns the run command's help text.
func (c *RunCommand) Help() string {
	var opts RunOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] [SELECTOR...]"
	base := &BaseCommand{
		Name:        "run",
		Description: "Run hooks against the candidate files.",
		Examples: []Example{
			{Command: "prek run", Description: "Run on staged files"},
			{Command: "prek run --all-files", Description: "Run on every tracked file"},
			{Command: "prek run flake8", Description: "Run one hook everywhere"},
			{Command: "prek run services/api:flake8", Description: "Run one hook of one project"},
			{Command: "prek run --skip sub/", Description: "Skip a project and its descendants"},
		},
		Notes: []string{
			"Selectors take the forms <hook-id>, <project-path>/, and <project-path>:<hook-id>.",
			"PREK_SKIP (fallback SKIP) supplies additional comma-separated skip selectors.",
		},
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *RunCommand) Synopsis() string { return "Run hooks" }

// ParseArgsWithHelp delegates to the shared parser.
func (c *RunCommand) ParseArgsWithHelp(opts any, args []string) ([]string, error) {
	return (&BaseCommand{}).ParseArgsWithHelp(opts, args)
}

// RunCommandFactory creates the command for the CLI framework.
func RunCommandFactory() (cli.Command, error) {
	return &RunCommand{}, nil
}
