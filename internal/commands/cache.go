package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/store"
)

// CacheCommand groups the store maintenance subcommands:
// dir, gc, clean, size.
type CacheCommand struct{}

// CacheOptions holds the cache command's flags.
type CacheOptions struct {
	CommonOptions
	DryRun bool `long:"dry-run" short:"n" description:"For gc: report what would be removed"`
}

// gcStaleAfter ages out entries whose referencing config can't be found.
const gcStaleAfter = 30 * 24 * time.Hour

// Run executes cache <subcommand>.
func (c *CacheCommand) Run(args []string) int {
	var opts CacheOptions
	remaining, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}
	if len(remaining) == 0 {
		fmt.Fprintln(os.Stderr, "Error: cache requires a subcommand: dir, gc, clean, size")
		return 1
	}

	rc, err := openRuntime(&opts.CommonOptions, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	switch remaining[0] {
	case "dir":
		fmt.Println(rc.Store.Root())
		return 0
	case "clean":
		if err := rc.Store.Clean(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println("cache cleaned")
		return 0
	case "gc":
		return cacheGC(rc.Store, opts.DryRun)
	case "size":
		return cacheSize(rc.Store)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown cache subcommand %q\n", remaining[0])
		return 1
	}
}

func cacheGC(s *store.Store, dryRun bool) int {
	referenced, err := referencedStorePaths(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	result, err := s.GarbageCollect(context.Background(), dryRun, referenced, gcStaleAfter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	verb := "removed"
	if dryRun {
		verb = "would remove"
	}
	fmt.Printf("%s %d repo(s) and %d environment(s)\n", verb, result.RemovedRepos, result.RemovedEnvs)
	for _, p := range result.FreedPaths {
		fmt.Printf("  %s\n", p)
	}
	return 0
}

// referencedStorePaths marks every repo clone referenced by a live config
// so gc keeps it.
func referencedStorePaths(s *store.Store) (map[string]bool, error) {
	live, err := s.LiveConfigs()
	if err != nil {
		return nil, err
	}

	referenced := map[string]bool{}
	for _, cfgPath := range live {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			continue
		}
		for _, repo := range cfg.Repos {
			if !repo.IsRemote() {
				continue
			}
			referenced[s.PathFor(store.KindRepo, store.RepoKey(repo.Repo, repo.Rev))] = true
			for _, h := range repo.Hooks {
				if len(h.AdditionalDeps) > 0 {
					referenced[s.PathFor(store.KindRepo, store.RepoKeyWithDeps(repo.Repo, repo.Rev, h.AdditionalDeps))] = true
				}
			}
		}
	}
	return referenced, nil
}

var sizePanel = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)

func cacheSize(s *store.Store) int {
	var rows string
	var total int64
	for _, sub := range []string{"repos", "envs", "toolchains", "patches"} {
		size := dirSize(filepath.Join(s.Root(), sub))
		total += size
		rows += fmt.Sprintf("%-11s %s\n", sub, humanSize(size))
	}
	rows += fmt.Sprintf("%-11s %s", "total", humanSize(total))
	fmt.Println(sizePanel.Render(rows))
	return 0
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Help returns the cache help text.
func (c *CacheCommand) Help() string {
	var opts CacheOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "{dir|gc|clean|size} [OPTIONS]"
	base := &BaseCommand{
		Name:        "cache",
		Description: "Inspect and maintain the store.",
		Examples: []Example{
			{Command: "prek cache dir", Description: "Print the store location"},
			{Command: "prek cache gc --dry-run", Description: "Show what garbage collection would remove"},
			{Command: "prek cache clean", Description: "Remove every cached repo, env, and toolchain"},
			{Command: "prek cache size", Description: "Report per-area disk usage"},
		},
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *CacheCommand) Synopsis() string { return "Inspect and maintain the store" }

// CacheCommandFactory creates the command.
func CacheCommandFactory() (cli.Command, error) {
	return &CacheCommand{}, nil
}
