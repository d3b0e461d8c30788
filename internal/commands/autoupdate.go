package commands

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/git"
	"github.com/shaneholloman/prek/pkg/store"
)

// AutoupdateCommand resolves the latest tag of every remote hook repo and
// rewrites the rev fields in place.
type AutoupdateCommand struct{}

// AutoupdateOptions holds the auto-update flags.
type AutoupdateOptions struct {
	CommonOptions
	BleedingEdge bool     `long:"bleeding-edge" description:"Track the default branch tip instead of tags"`
	Freeze       bool     `long:"freeze"        description:"Store the resolved commit SHA instead of the tag"`
	Cooldown     int      `long:"cooldown"      description:"Only accept tags at least this many days old"`
	RepoFilter   []string `long:"repo"          description:"Only update this repository URL (repeatable)"`
	DryRun       bool     `long:"dry-run"       description:"Report updates without writing"`
}

// Run executes auto-update.
func (c *AutoupdateCommand) Run(args []string) int {
	var opts AutoupdateOptions
	if _, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}

	if err := autoupdate(&opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func autoupdate(opts *AutoupdateOptions) error {
	rc, err := openRuntime(&opts.CommonOptions, true)
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter := map[string]bool{}
	for _, r := range opts.RepoFilter {
		filter[r] = true
	}

	// Each unique repo URL is resolved once even when many projects
	// reference it.
	resolved := map[string]string{}

	for _, project := range rc.Ws.Projects {
		changed := false
		for _, repo := range project.Config.Repos {
			if !repo.IsRemote() {
				continue
			}
			if len(filter) > 0 && !filter[repo.Repo] {
				continue
			}

			newRev, ok := resolved[repo.Repo]
			if !ok {
				newRev, err = resolveLatestRev(ctx, rc.Store, repo, opts)
				if err != nil {
					fmt.Fprintf(os.Stderr, "[WARN] %s: %v\n", repo.Repo, err)
					continue
				}
				resolved[repo.Repo] = newRev
			}

			if newRev == "" || newRev == repo.Rev {
				fmt.Printf("%s already up to date (%s)\n", repo.Repo, repo.Rev)
				continue
			}

			fmt.Printf("%s: %s -> %s\n", repo.Repo, repo.Rev, newRev)
			if !opts.DryRun {
				if err := rewriteRev(project.ConfigPath, repo.Repo, repo.Rev, newRev); err != nil {
					return err
				}
				changed = true
			}
		}
		if changed {
			fmt.Printf("updated %s\n", project.ConfigPath)
		}
	}
	return nil
}

// resolveLatestRev clones/updates the repo in the store, then picks the
// newest eligible tag (or the default branch tip with --bleeding-edge).
func resolveLatestRev(ctx context.Context, s *store.Store, repo config.Repo, opts *AutoupdateOptions) (string, error) {
	key := store.RepoKey(repo.Repo, repo.Rev)
	repoPath := s.PathFor(store.KindRepo, key)
	if _, err := os.Stat(repoPath); err != nil {
		if err := git.CloneRepo(ctx, repo.Repo, repo.Rev, repoPath); err != nil {
			return "", err
		}
	}
	if err := git.FetchAll(ctx, repoPath); err != nil {
		return "", err
	}

	if opts.BleedingEdge {
		sha, err := git.RemoteHead(ctx, repoPath)
		if err != nil {
			return "", err
		}
		return sha, nil
	}

	tags, err := git.ListTagsWithDates(ctx, repoPath)
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("no tags found")
	}

	// Cooldown: a tag is eligible iff it is at least N days old.
	if opts.Cooldown > 0 {
		cutoff := time.Now().AddDate(0, 0, -opts.Cooldown)
		var eligible []git.Tag
		for _, t := range tags {
			if t.CreatedAt.Before(cutoff) {
				eligible = append(eligible, t)
			}
		}
		tags = eligible
		if len(tags) == 0 {
			return "", fmt.Errorf("no tags older than the %d-day cooldown", opts.Cooldown)
		}
	}

	best := pickTag(tags, repo.Rev)
	if opts.Freeze {
		sha, err := git.ResolveCommit(ctx, repoPath, best)
		if err != nil {
			return "", err
		}
		return sha, nil
	}
	return best, nil
}

// pickTag prefers the newest tag sharing the current rev's version shape
// (semver similarity), falling back to the newest tag overall.
func pickTag(tags []git.Tag, currentRev string) string {
	sort.Slice(tags, func(i, j int) bool {
		vi, oki := versionKey(tags[i].Name)
		vj, okj := versionKey(tags[j].Name)
		if oki && okj {
			for k := 0; k < len(vi) && k < len(vj); k++ {
				if vi[k] != vj[k] {
					return vi[k] > vj[k]
				}
			}
			return len(vi) > len(vj)
		}
		if oki != okj {
			return oki
		}
		return tags[i].CreatedAt.After(tags[j].CreatedAt)
	})

	prefixed := strings.HasPrefix(currentRev, "v")
	for _, t := range tags {
		if _, ok := versionKey(t.Name); ok && strings.HasPrefix(t.Name, "v") == prefixed {
			return t.Name
		}
	}
	return tags[0].Name
}

var versionTagRE = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?$`)

func versionKey(tag string) ([]int, bool) {
	m := versionTagRE.FindStringSubmatch(tag)
	if m == nil {
		return nil, false
	}
	var key []int
	for _, part := range m[1:] {
		if part == "" {
			break
		}
		n, _ := strconv.Atoi(part)
		key = append(key, n)
	}
	return key, true
}

// rewriteRev updates the rev line following the matching repo line,
// preserving every other byte of the file (formatting, comments, key
// order). Works for both surface syntaxes since both keep repo and rev on
// their own lines.
func rewriteRev(configPath, repoURL, oldRev, newRev string) error {
	data, err := os.ReadFile(configPath) // #nosec G304 -- project config path
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")
	inRepo := false
	changed := false
	for i, line := range lines {
		if strings.Contains(line, repoURL) {
			inRepo = true
			continue
		}
		if !inRepo {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "rev:") || strings.HasPrefix(trimmed, "rev =") || strings.HasPrefix(trimmed, "rev=") {
			lines[i] = strings.Replace(line, oldRev, newRev, 1)
			changed = true
			inRepo = false
		} else if strings.HasPrefix(trimmed, "- repo:") || strings.HasPrefix(trimmed, "[[repos]]") {
			inRepo = false
		}
	}
	if !changed {
		return fmt.Errorf("failed to locate rev for %s in %s", repoURL, configPath)
	}
	return os.WriteFile(configPath, []byte(strings.Join(lines, "\n")), 0o644) // #nosec G306 -- config keeps its conventional mode
}

// Help returns the auto-update help text.
func (c *AutoupdateCommand) Help() string {
	var opts AutoupdateOptions
	parser := flags.NewParser(&opts, flags.Default)
	base := &BaseCommand{
		Name:        "auto-update",
		Description: "Update every remote repo's rev to its latest eligible tag.",
		Examples: []Example{
			{Command: "prek auto-update", Description: "Update all remote repos"},
			{Command: "prek auto-update --freeze", Description: "Pin commit SHAs instead of tags"},
			{Command: "prek auto-update --cooldown 7", Description: "Ignore tags newer than a week"},
		},
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *AutoupdateCommand) Synopsis() string { return "Update hook repos to their latest revisions" }

// AutoupdateCommandFactory creates the command.
func AutoupdateCommandFactory() (cli.Command, error) {
	return &AutoupdateCommand{}, nil
}
