package builtins

import (
	"bytes"
	"os"
	"strings"
)

func init() {
	register(Hook{
		ID:          "check-symlinks",
		Name:        "check for broken symlinks",
		Description: "checks for symlinks which do not point to anything",
		Types:       []string{"symlink"},
		Run:         checkSymlinks,
	})
	register(Hook{
		ID:          "destroyed-symlinks",
		Name:        "detect destroyed symlinks",
		Description: "detects symlinks which are changed to regular files with a content of a path",
		Run:         destroyedSymlinks,
	})
	register(Hook{
		ID:          "check-executables-have-shebangs",
		Name:        "check that executables have shebangs",
		Description: "ensures that (non-binary) executables have a shebang",
		Types:       []string{"text", "executable"},
		Run:         checkExecutablesHaveShebangs,
	})
	register(Hook{
		ID:          "check-shebang-scripts-are-executable",
		Name:        "check that scripts with shebangs are executable",
		Description: "ensures that (non-binary) files with a shebang are executable",
		Types:       []string{"text"},
		Run:         checkShebangScriptsAreExecutable,
	})
	register(Hook{
		ID:          "no-commit-to-branch",
		Name:        "don't commit to branch",
		Description: "protects specific branches from direct checkins",
		Run:         noCommitToBranch,
	})
}

func checkSymlinks(ctx *Context) (int, []byte) {
	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		path := ctx.resolve(file)
		info, err := os.Lstat(path)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			failed = true
			failf(&out, "%s: broken symlink", file)
		}
	}
	return finish(failed, &out)
}

// destroyedSymlinks flags regular files whose git-recorded mode used to be
// a symlink and whose content is now just a short path, the signature of a
// checkout on a filesystem without symlink support.
func destroyedSymlinks(ctx *Context) (int, []byte) {
	if ctx.Repo == nil {
		return 0, nil
	}

	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		path := ctx.resolve(file)
		info, err := os.Lstat(path)
		if err != nil || info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
			continue
		}
		if !ctx.Repo.WasSymlink(file) {
			continue
		}
		if info.Size() > 4096 {
			continue
		}
		data, err := readAll(path)
		if err != nil {
			continue
		}
		content := strings.TrimSpace(string(data))
		if content != "" && !strings.ContainsAny(content, "\n\x00") {
			failed = true
			failf(&out, "%s: destroyed symlink (now a file containing %q)", file, content)
		}
	}
	return finish(failed, &out)
}

func checkExecutablesHaveShebangs(ctx *Context) (int, []byte) {
	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		data, err := readAll(ctx.resolve(file))
		if err != nil {
			continue
		}
		if !bytes.HasPrefix(data, []byte("#!")) {
			failed = true
			failf(&out, "%s: marked executable but has no (or invalid) shebang", file)
		}
	}
	return finish(failed, &out)
}

func checkShebangScriptsAreExecutable(ctx *Context) (int, []byte) {
	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		path := ctx.resolve(file)
		data, err := readAll(path)
		if err != nil || !bytes.HasPrefix(data, []byte("#!")) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Mode()&0o111 == 0 {
			failed = true
			failf(&out, "%s: has a shebang but is not marked executable", file)
		}
	}
	return finish(failed, &out)
}

func noCommitToBranch(ctx *Context) (int, []byte) {
	protected := argValues(ctx.Args, "--branch")
	if len(protected) == 0 {
		protected = []string{"master", "main"}
	}
	patterns := argValues(ctx.Args, "--pattern")

	if ctx.Repo == nil {
		return 0, nil
	}
	branch, err := ctx.Repo.GetCurrentBranch()
	if err != nil {
		// Detached HEAD is never a protected branch.
		return 0, nil
	}

	var out bytes.Buffer
	for _, p := range protected {
		if branch == p {
			failf(&out, "direct commits to branch %s are not allowed", branch)
			return 1, out.Bytes()
		}
	}
	for _, p := range patterns {
		if matchBranchPattern(p, branch) {
			failf(&out, "direct commits to branch %s are not allowed", branch)
			return 1, out.Bytes()
		}
	}
	return 0, nil
}

// matchBranchPattern applies a simple anchored wildcard match where '*'
// spans any run of characters.
func matchBranchPattern(pattern, branch string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == branch
	}
	rest := branch
	for i, part := range parts {
		switch {
		case i == 0:
			if !strings.HasPrefix(rest, part) {
				return false
			}
			rest = rest[len(part):]
		case i == len(parts)-1:
			return strings.HasSuffix(rest, part)
		default:
			idx := strings.Index(rest, part)
			if idx < 0 {
				return false
			}
			rest = rest[idx+len(part):]
		}
	}
	return true
}
