package language

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/dlclark/regexp2"

	"github.com/shaneholloman/prek/pkg/config"
)

// pygrepBackend is a native regex line matcher: the hook's entry is the
// pattern and a match is a failure. It never shells out to an interpreter.
type pygrepBackend struct{}

func newPygrepBackend() *pygrepBackend { return &pygrepBackend{} }

func (b *pygrepBackend) Name() string   { return "pygrep" }
func (b *pygrepBackend) NeedsEnv() bool { return false }

func (b *pygrepBackend) Discover(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return &Toolchain{Language: "pygrep"}, nil
}

func (b *pygrepBackend) Install(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return nil, ErrNoDownload
}

func (b *pygrepBackend) ProvisionEnv(_ context.Context, _, _ string, _ config.Hook, _ *Toolchain) error {
	return nil
}

func (b *pygrepBackend) HealthCheck(_ context.Context, _ *Env) bool { return true }

func (b *pygrepBackend) BuildCommand(_ *Env, hook config.Hook, _ []string) (Command, error) {
	return Command{Argv: []string{hook.Entry}, Env: map[string]string{}}, nil
}

type pygrepOptions struct {
	multiline  bool
	ignoreCase bool
	negate     bool
}

func parsePygrepArgs(args []string) pygrepOptions {
	var opts pygrepOptions
	for _, a := range args {
		switch a {
		case "--multiline":
			opts.multiline = true
		case "--ignore-case", "-i":
			opts.ignoreCase = true
		case "--negate":
			opts.negate = true
		}
	}
	return opts
}

// RunNative greps every file for the entry pattern. A match fails the hook;
// with --negate, a file with no match fails instead.
func (b *pygrepBackend) RunNative(hook config.Hook, _ string, files []string) (int, []byte) {
	opts := parsePygrepArgs(hook.Args)

	reOpts := regexp2.None
	if opts.ignoreCase {
		reOpts |= regexp2.IgnoreCase
	}
	if opts.multiline {
		reOpts |= regexp2.Multiline | regexp2.Singleline
	}
	re, err := regexp2.Compile(hook.Entry, reOpts)
	if err != nil {
		return 1, []byte(fmt.Sprintf("invalid pattern %q: %v\n", hook.Entry, err))
	}

	var out bytes.Buffer
	failed := false
	for _, file := range files {
		if opts.multiline {
			if b.grepMultiline(re, file, opts, &out) {
				failed = true
			}
		} else if b.grepLines(re, file, opts, &out) {
			failed = true
		}
	}
	if failed {
		return 1, out.Bytes()
	}
	return 0, nil
}

func (b *pygrepBackend) grepLines(re *regexp2.Regexp, file string, opts pygrepOptions, out *bytes.Buffer) bool {
	f, err := os.Open(file) // #nosec G304 -- candidate file from git
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", file, err)
		return true
	}
	defer func() { _ = f.Close() }()

	matched := false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := scanner.Text()
		if ok, _ := re.MatchString(line); ok {
			matched = true
			if !opts.negate {
				fmt.Fprintf(out, "%s:%d:%s\n", file, lineno, line)
			}
		}
	}

	if opts.negate && !matched {
		fmt.Fprintf(out, "%s\n", file)
		return true
	}
	return !opts.negate && matched
}

func (b *pygrepBackend) grepMultiline(re *regexp2.Regexp, file string, opts pygrepOptions, out *bytes.Buffer) bool {
	data, err := os.ReadFile(file) // #nosec G304 -- candidate file from git
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", file, err)
		return true
	}

	m, _ := re.FindStringMatch(string(data))
	matched := m != nil
	if opts.negate {
		if !matched {
			fmt.Fprintf(out, "%s\n", file)
			return true
		}
		return false
	}
	if matched {
		line := 1 + bytes.Count(data[:m.Index], []byte("\n"))
		fmt.Fprintf(out, "%s:%d:%s\n", file, line, m.String())
	}
	return matched
}
