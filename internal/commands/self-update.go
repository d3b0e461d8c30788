package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"
)

// SelfCommand groups self-management subcommands; only "update" exists.
type SelfCommand struct{}

// SelfOptions holds the self command's flags.
type SelfOptions struct {
	CommonOptions
	Check bool `long:"check" description:"Only report whether a newer release exists"`
}

const releaseAPI = "https://api.github.com/repos/shaneholloman/prek/releases/latest"

// Run executes self <subcommand>.
func (c *SelfCommand) Run(args []string) int {
	var opts SelfOptions
	remaining, err := (&BaseCommand{}).ParseArgsWithHelp(&opts, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Help {
		return 0
	}
	if len(remaining) == 0 || remaining[0] != "update" {
		fmt.Fprintln(os.Stderr, "Error: self requires the update subcommand")
		return 1
	}

	latest, err := latestReleaseTag()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if latest == "v"+Version || latest == Version {
		fmt.Printf("prek %s is already the latest release\n", Version)
		return 0
	}

	fmt.Printf("current: %s, latest: %s\n", Version, latest)
	if opts.Check {
		return 0
	}
	fmt.Printf("download: https://github.com/shaneholloman/prek/releases/download/%s/prek-%s-%s\n",
		latest, runtime.GOOS, runtime.GOARCH)
	fmt.Println("replace the binary on PATH with the downloaded release to finish updating")
	return 0
}

func latestReleaseTag() (string, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(releaseAPI) //nolint:noctx // one-shot CLI query
	if err != nil {
		return "", fmt.Errorf("failed to query releases: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release query failed: HTTP %d", resp.StatusCode)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to decode release metadata: %w", err)
	}
	return release.TagName, nil
}

// Help returns the self help text.
func (c *SelfCommand) Help() string {
	var opts SelfOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "update [OPTIONS]"
	base := &BaseCommand{
		Name:        "self",
		Description: "Manage the prek installation itself.",
	}
	return base.GenerateHelp(parser)
}

// Synopsis returns the one-line description.
func (c *SelfCommand) Synopsis() string { return "Manage the prek installation" }

// SelfCommandFactory creates the command.
func SelfCommandFactory() (cli.Command, error) {
	return &SelfCommand{}, nil
}
