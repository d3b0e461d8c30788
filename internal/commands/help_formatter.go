package commands

import (
	"fmt"
	"strings"

	"github.com/jessevdk/go-flags"
)

// HelpFormatter renders the shared help layout: description, examples,
// notes, then the auto-generated options block.
type HelpFormatter struct {
	Command     string
	Description string
	Examples    []Example
	Notes       []string
}

// Example is one usage line shown in a command's help.
type Example struct {
	Command     string
	Description string
}

// FormatHelp generates the help text for a command.
func (h *HelpFormatter) FormatHelp(parser *flags.Parser) string {
	var b strings.Builder

	if h.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", h.Description)
	}

	if len(h.Examples) > 0 {
		b.WriteString("Examples:\n")
		for _, ex := range h.Examples {
			if ex.Description != "" {
				fmt.Fprintf(&b, "  %s  # %s\n", ex.Command, ex.Description)
			} else {
				fmt.Fprintf(&b, "  %s\n", ex.Command)
			}
		}
		b.WriteString("\n")
	}

	if len(h.Notes) > 0 {
		b.WriteString("Notes:\n")
		for _, note := range h.Notes {
			fmt.Fprintf(&b, "  %s\n", note)
		}
		b.WriteString("\n")
	}

	var optsBuf strings.Builder
	parser.WriteHelp(&optsBuf)
	b.WriteString(optsBuf.String())

	return b.String()
}
