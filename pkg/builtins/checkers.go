package builtins

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

func init() {
	register(Hook{
		ID:          "check-yaml",
		Name:        "check yaml",
		Description: "checks yaml files for parseable syntax",
		Types:       []string{"yaml"},
		Run:         checkYAML,
	})
	register(Hook{
		ID:          "check-json",
		Name:        "check json",
		Description: "checks json files for parseable syntax",
		Types:       []string{"json"},
		Run:         checkJSON,
	})
	register(Hook{
		ID:          "check-toml",
		Name:        "check toml",
		Description: "checks toml files for parseable syntax",
		Types:       []string{"toml"},
		Run:         checkTOML,
	})
	register(Hook{
		ID:          "check-merge-conflict",
		Name:        "check for merge conflicts",
		Description: "checks for files that contain merge conflict strings",
		Types:       []string{"text"},
		Run:         checkMergeConflict,
	})
	register(Hook{
		ID:          "check-added-large-files",
		Name:        "check for added large files",
		Description: "prevents giant files from being committed",
		Run:         checkAddedLargeFiles,
	})
	register(Hook{
		ID:          "check-case-conflict",
		Name:        "check for case conflicts",
		Description: "checks for files whose names would conflict on a case-insensitive filesystem",
		Run:         checkCaseConflict,
	})
	register(Hook{
		ID:          "detect-private-key",
		Name:        "detect private key",
		Description: "detects the presence of private keys",
		Types:       []string{"text"},
		Run:         detectPrivateKey,
	})
}

func checkYAML(ctx *Context) (int, []byte) {
	multi := hasFlag(ctx.Args, "--allow-multiple-documents") || hasFlag(ctx.Args, "-m")

	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		data, err := readAll(ctx.resolve(file))
		if err != nil {
			failed = true
			failf(&out, "%s: %v", file, err)
			continue
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		docs := 0
		for {
			var doc any
			err := dec.Decode(&doc)
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				failed = true
				failf(&out, "%s: %v", file, err)
				break
			}
			docs++
			if docs > 1 && !multi {
				failed = true
				failf(&out, "%s: expected a single document, use --allow-multiple-documents", file)
				break
			}
		}
	}
	return finish(failed, &out)
}

func checkJSON(ctx *Context) (int, []byte) {
	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		data, err := readAll(ctx.resolve(file))
		if err != nil {
			failed = true
			failf(&out, "%s: %v", file, err)
			continue
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			failed = true
			failf(&out, "%s: %v", file, err)
		}
	}
	return finish(failed, &out)
}

func checkTOML(ctx *Context) (int, []byte) {
	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		var doc any
		if _, err := toml.DecodeFile(ctx.resolve(file), &doc); err != nil {
			failed = true
			failf(&out, "%s: %v", file, err)
		}
	}
	return finish(failed, &out)
}

var conflictMarkers = [][]byte{
	[]byte("<<<<<<< "),
	[]byte(">>>>>>> "),
	[]byte("======="),
}

func checkMergeConflict(ctx *Context) (int, []byte) {
	// Outside an actual merge, conflict markers in e.g. documentation are
	// legitimate; upstream only enforces during merges unless --assume-in-merge.
	inMerge := hasFlag(ctx.Args, "--assume-in-merge")
	if !inMerge && ctx.Repo != nil {
		inMerge = ctx.Repo.InMerge()
	}
	if !inMerge {
		return 0, nil
	}

	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		path := ctx.resolve(file)
		lineno := 0
		err := forEachLine(path, func(line []byte) error {
			lineno++
			for _, marker := range conflictMarkers {
				if bytes.HasPrefix(line, marker) {
					failed = true
					failf(&out, "%s:%d: merge conflict marker %q found", file, lineno, strings.TrimSpace(string(marker)))
					break
				}
			}
			return nil
		})
		if err != nil {
			failed = true
			failf(&out, "%s: %v", file, err)
		}
	}
	return finish(failed, &out)
}

func checkAddedLargeFiles(ctx *Context) (int, []byte) {
	maxKB := int64(500)
	if v, ok := argValue(ctx.Args, "--maxkb"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			maxKB = n
		}
	}
	enforceAll := hasFlag(ctx.Args, "--enforce-all")

	// Intent-to-add files have no blob in the index yet; they are sized
	// from the working tree like everything else, but without
	// --enforce-all only added files are candidates, so the set matters.
	added := map[string]bool{}
	if ctx.Repo != nil && !enforceAll {
		if files, err := ctx.Repo.IntentToAddFiles(); err == nil {
			for _, f := range files {
				added[f] = true
			}
		}
		if files, err := ctx.Repo.GetStagedFiles(); err == nil {
			for _, f := range files {
				added[f] = true
			}
		}
	}

	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		if !enforceAll && ctx.Repo != nil && !added[file] {
			continue
		}
		// git-lfs pointers are small on disk but the attribute marks the
		// real content as externally stored; skip them.
		if ctx.Repo != nil {
			if attr, err := ctx.Repo.Attr(file, "filter"); err == nil && attr == "lfs" {
				continue
			}
		}

		info, err := os.Stat(ctx.resolve(file))
		if err != nil {
			continue
		}
		if kb := info.Size() / 1024; kb > maxKB {
			failed = true
			failf(&out, "%s (%d KB) exceeds %d KB", file, kb, maxKB)
		}
	}
	return finish(failed, &out)
}

func checkCaseConflict(ctx *Context) (int, []byte) {
	seen := map[string][]string{}
	// Conflicts are checked against the whole tracked tree, not just the
	// candidates, so a new file clashing with an existing one is caught.
	all := ctx.Files
	if ctx.Repo != nil {
		if tracked, err := ctx.Repo.GetAllFiles(); err == nil {
			all = append(append([]string{}, ctx.Files...), tracked...)
		}
	}
	for _, f := range all {
		lower := strings.ToLower(f)
		found := false
		for _, existing := range seen[lower] {
			if existing == f {
				found = true
				break
			}
		}
		if !found {
			seen[lower] = append(seen[lower], f)
		}
	}

	candidate := map[string]bool{}
	for _, f := range ctx.Files {
		candidate[f] = true
	}

	var out bytes.Buffer
	failed := false
	for _, group := range seen {
		if len(group) < 2 {
			continue
		}
		for _, f := range group {
			if candidate[f] {
				failed = true
				failf(&out, "case conflict: %s", strings.Join(group, " <-> "))
				break
			}
		}
	}
	return finish(failed, &out)
}

var privateKeyMarkers = []string{
	"BEGIN RSA PRIVATE KEY",
	"BEGIN DSA PRIVATE KEY",
	"BEGIN EC PRIVATE KEY",
	"BEGIN OPENSSH PRIVATE KEY",
	"BEGIN PRIVATE KEY",
	"BEGIN ENCRYPTED PRIVATE KEY",
	"BEGIN PGP PRIVATE KEY BLOCK",
	"PuTTY-User-Key-File-2",
}

func detectPrivateKey(ctx *Context) (int, []byte) {
	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		data, err := readAll(ctx.resolve(file))
		if err != nil {
			continue
		}
		content := string(data)
		for _, marker := range privateKeyMarkers {
			if strings.Contains(content, marker) {
				failed = true
				failf(&out, "Private key found: %s", file)
				break
			}
		}
	}
	return finish(failed, &out)
}

