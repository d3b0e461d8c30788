package builtins

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// resolve joins a candidate path onto the invocation's working directory.
func (c *Context) resolve(file string) string {
	if filepath.IsAbs(file) || c.WorkDir == "" {
		return file
	}
	return filepath.Join(c.WorkDir, file)
}

// argValue extracts "--name=value" or "--name value" from an args list.
func argValue(args []string, name string) (string, bool) {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1], true
		}
		if strings.HasPrefix(a, name+"=") {
			return strings.TrimPrefix(a, name+"="), true
		}
	}
	return "", false
}

// argValues collects every occurrence of a repeatable option.
func argValues(args []string, name string) []string {
	var out []string
	for i, a := range args {
		if a == name && i+1 < len(args) {
			out = append(out, args[i+1])
		}
		if strings.HasPrefix(a, name+"=") {
			out = append(out, strings.TrimPrefix(a, name+"="))
		}
	}
	return out
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}

// rewriteFile replaces path's content through a temporary file in the same
// directory so the swap is a single atomic rename, preserving mode.
func rewriteFile(path string, content []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".prek-rewrite-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, info.Mode()); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// forEachLine streams path line by line, preserving line endings. Large
// files never load fully into memory.
func forEachLine(path string, fn func(line []byte) error) error {
	f, err := os.Open(path) // #nosec G304 -- candidate file from git
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if fnErr := fn(line); fnErr != nil {
				return fnErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// readAll reads a candidate file fully; used by the checks that need whole
// documents (yaml/json/toml parsing).
func readAll(path string) ([]byte, error) {
	return os.ReadFile(path) // #nosec G304 -- candidate file from git
}

// failf formats one failure line into the hook's output buffer.
func failf(out *bytes.Buffer, format string, args ...any) {
	fmt.Fprintf(out, format+"\n", args...)
}

// finish converts an output buffer into the hook result.
func finish(failed bool, out *bytes.Buffer) (int, []byte) {
	if failed {
		return 1, out.Bytes()
	}
	return 0, out.Bytes()
}
