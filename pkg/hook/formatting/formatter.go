// Package formatting renders per-hook status lines and the end-of-run
// summary.
package formatting

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/shaneholloman/prek/pkg/hook"
)

// Color mode and quiet-level environment variables.
const (
	ColorEnvVar = "PREK_COLOR"
	QuietEnvVar = "PREK_QUIET"
)

// Status colors, matching the upstream look.
var (
	passedColor  = color.New(color.BgGreen, color.FgBlack)
	failedColor  = color.New(color.BgRed, color.FgWhite)
	skippedColor = color.New(color.BgCyan, color.FgBlack)
	detailColor  = color.New(color.Faint)
)

const statusLineWidth = 79

// Printer writes hook status lines honoring color mode and verbosity.
// Quiet levels: 0 prints everything, 1 only failures, 2 nothing.
type Printer struct {
	Out     io.Writer
	Verbose bool
	Quiet   int
}

// NewPrinter resolves color mode ("auto", "always", "never"; the PREK_COLOR
// variable overrides "auto") and quiet level.
func NewPrinter(colorMode string, verbose bool, quiet int) *Printer {
	if env := os.Getenv(ColorEnvVar); env != "" && colorMode == "auto" {
		colorMode = env
	}
	switch colorMode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	}

	switch os.Getenv(QuietEnvVar) {
	case "1":
		if quiet < 1 {
			quiet = 1
		}
	case "2":
		quiet = 2
	}

	return &Printer{Out: os.Stdout, Verbose: verbose, Quiet: quiet}
}

// StatusLine prints one fixed-width hook line: name, dot leaders, status.
func (p *Printer) StatusLine(r hook.Result) {
	if p.Quiet >= 2 || (p.Quiet == 1 && r.OK()) {
		return
	}

	name := r.HookName
	if name == "" {
		name = r.HookID
	}

	status := r.Status.String()
	if r.Status == hook.Passed && r.ModifiedFiles {
		status = "Failed"
	}

	dots := statusLineWidth - len(name) - len(status)
	if dots < 1 {
		dots = 1
	}
	fmt.Fprintf(p.Out, "%s%s%s\n", name, strings.Repeat(".", dots), p.colorize(status))

	p.printDetails(r)
}

func (p *Printer) colorize(status string) string {
	switch status {
	case "Passed":
		return passedColor.Sprint(status)
	case "Failed", "Unimplemented":
		return failedColor.Sprint(status)
	default:
		return skippedColor.Sprint(status)
	}
}

// printDetails writes the failure body (or, under -v, every body): hook id,
// timing, modification notice, and the captured output.
func (p *Printer) printDetails(r hook.Result) {
	show := !r.OK() || p.Verbose
	if !show || p.Quiet >= 2 {
		return
	}

	fmt.Fprintf(p.Out, "%s\n", detailColor.Sprintf("- hook id: %s", r.HookID))
	if p.Verbose {
		fmt.Fprintf(p.Out, "%s\n", detailColor.Sprintf("- duration: %.2fs", r.Duration.Seconds()))
	}
	if r.TimedOut {
		fmt.Fprintf(p.Out, "%s\n", detailColor.Sprintf("- timed out after %.2fs", r.Duration.Seconds()))
	}
	if r.ModifiedFiles {
		fmt.Fprintf(p.Out, "%s\n", detailColor.Sprint("- files were modified by this hook"))
	}

	if body := strings.TrimRight(string(r.Output), "\n"); body != "" {
		fmt.Fprintf(p.Out, "\n%s\n\n", body)
	}
}

// ProjectHeader announces the project about to run in a multi-project
// workspace.
func (p *Printer) ProjectHeader(relPath string, total int) {
	if p.Quiet >= 1 || total <= 1 || relPath == "" {
		return
	}
	label := relPath
	if label == "." {
		label = "(workspace root)"
	}
	fmt.Fprintf(p.Out, "%s\n", detailColor.Sprintf("==> %s", label))
}

var summaryPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 1)

// Summary prints the bordered end-of-run panel when anything failed.
func (p *Printer) Summary(s *hook.Summary) {
	if p.Quiet >= 2 {
		return
	}
	failed := s.Failed()
	if len(failed) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d hook(s) did not pass", len(failed))
	for _, r := range failed {
		reason := r.Status.String()
		if r.Status == hook.Passed && r.ModifiedFiles {
			reason = "files modified"
		}
		fmt.Fprintf(&b, "\n  %s: %s", r.HookID, reason)
	}
	fmt.Fprintf(p.Out, "%s\n", summaryPanel.Render(b.String()))
}
