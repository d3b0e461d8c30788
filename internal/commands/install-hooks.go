package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/shaneholloman/prek/pkg/config"
)

// InstallHooksCommand provisions every configured hook environment up
// front, so the first commit doesn't pay install latency.
type InstallHooksCommand struct{}

// InstallHooksOptions holds the command's flags.
type InstallHooksOptions struct {
	CommonOptions
}

// Run executes install-hooks.
func (c *InstallHooksCommand) Run(args []string) int {
	var opts InstallHooksOptions
	if _, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}

	rc, err := openRuntime(&opts.CommonOptions, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := installAllHookEnvs(rc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// installAllHookEnvs walks every project's remote and local hooks and
// ensures their environments exist.
func installAllHookEnvs(rc *runtimeContext) error {
	ctx := context.Background()
	for _, project := range rc.Ws.Projects {
		for _, repo := range project.Config.Repos {
			for _, h := range repo.Hooks {
				if err := installHookEnv(ctx, rc, project.Config, repo, h); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func installHookEnv(ctx context.Context, rc *runtimeContext, cfg *config.Config, repo config.Repo, h config.Hook) error {
	switch repo.Kind() {
	case config.KindMeta, config.KindBuiltin:
		return nil
	case config.KindLocal:
		version := config.ResolveEffectiveLanguageVersion(h, cfg)
		_, err := rc.Envs.EnsureEnv(ctx, h, "", version)
		return err
	default:
		repoPath, err := rc.RepoOps.CloneOrUpdateRepoWithDeps(ctx, repo, h.AdditionalDeps)
		if err != nil {
			return err
		}
		manifest, err := config.LoadManifest(repoPath)
		if err != nil {
			return err
		}
		for _, m := range manifest {
			if m.ID != h.ID {
				continue
			}
			merged := config.MergeHook(m, h)
			version := config.ResolveEffectiveLanguageVersion(merged, cfg)
			_, err := rc.Envs.EnsureEnv(ctx, merged, repoPath, version)
			return err
		}
		return fmt.Errorf("hook %s not present in repository %s", h.ID, repo.Repo)
	}
}

// Help returns the install-hooks help text.
func (c *InstallHooksCommand) Help() string {
	var opts InstallHooksOptions
	parser := flags.NewParser(&opts, flags.Default)
	base := &BaseCommand{
		Name:        "install-hooks",
		Description: "Provision every hook environment declared by the workspace.",
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *InstallHooksCommand) Synopsis() string { return "Provision all hook environments" }

// InstallHooksCommandFactory creates the command.
func InstallHooksCommandFactory() (cli.Command, error) {
	return &InstallHooksCommand{}, nil
}
