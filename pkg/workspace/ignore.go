package workspace

import (
	"bufio"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PrekIgnoreFileName augments .gitignore for discovery: directories matched
// here are never scanned for configs even when git tracks them.
const PrekIgnoreFileName = ".prekignore"

// ignoreRule is one line of a .gitignore-style file, scoped to the
// directory the file lives in.
type ignoreRule struct {
	pattern string
	base    string // workspace-relative dir of the ignore file, "." at root
	negate  bool
	dirOnly bool
}

// ignoreMatcher evaluates .gitignore and .prekignore rules with standard
// last-match-wins semantics.
type ignoreMatcher struct {
	rules []ignoreRule
}

// loadIgnoreFile appends the rules of one ignore file, if present. base is
// the ignore file's directory relative to the workspace root.
func (m *ignoreMatcher) loadIgnoreFile(path, base string) error {
	f, err := os.Open(path) // #nosec G304 -- ignore file inside the workspace
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule := ignoreRule{base: normalizeRel(base)}
		if strings.HasPrefix(line, "!") {
			rule.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			rule.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}

		// A pattern with no slash matches at any depth below the ignore
		// file; an anchored pattern matches relative to it.
		if strings.Contains(line, "/") {
			rule.pattern = strings.TrimPrefix(line, "/")
		} else {
			rule.pattern = "**/" + line
		}
		m.rules = append(m.rules, rule)
	}
	return scanner.Err()
}

// Ignored reports whether the workspace-relative path is excluded. isDir
// gates dir-only rules.
func (m *ignoreMatcher) Ignored(relPath string, isDir bool) bool {
	relPath = normalizeRel(relPath)
	ignored := false
	for _, rule := range m.rules {
		if rule.dirOnly && !isDir {
			continue
		}
		scoped := relPath
		if rule.base != "." {
			if !strings.HasPrefix(relPath, rule.base+"/") {
				continue
			}
			scoped = strings.TrimPrefix(relPath, rule.base+"/")
		}
		if ok, err := doublestar.Match(rule.pattern, scoped); err == nil && ok {
			ignored = !rule.negate
		}
	}
	return ignored
}
