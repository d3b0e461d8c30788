package builtins

import (
	"bytes"
	"path/filepath"
	"strings"
)

func init() {
	register(Hook{
		ID:          "trailing-whitespace",
		Name:        "trim trailing whitespace",
		Description: "trims trailing whitespace",
		Types:       []string{"text"},
		Run:         trailingWhitespace,
	})
	register(Hook{
		ID:          "end-of-file-fixer",
		Name:        "fix end of files",
		Description: "ensures files end in a newline and only a newline",
		Types:       []string{"text"},
		Run:         endOfFileFixer,
	})
	register(Hook{
		ID:          "mixed-line-ending",
		Name:        "mixed line ending",
		Description: "replaces or checks mixed line endings",
		Types:       []string{"text"},
		Run:         mixedLineEnding,
	})
	register(Hook{
		ID:          "fix-byte-order-marker",
		Name:        "fix utf-8 byte order marker",
		Description: "removes utf-8 byte order markers",
		Types:       []string{"text"},
		Run:         fixByteOrderMarker,
	})
}

// trailingWhitespace trims trailing spaces and tabs from every line. With
// --markdown-linebreak-ext, markdown hard linebreaks (two trailing spaces)
// are preserved for the named extensions.
func trailingWhitespace(ctx *Context) (int, []byte) {
	mdExts := map[string]bool{}
	for _, ext := range argValues(ctx.Args, "--markdown-linebreak-ext") {
		for _, e := range strings.Split(ext, ",") {
			mdExts["."+strings.TrimPrefix(strings.TrimSpace(e), ".")] = true
		}
	}

	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		path := ctx.resolve(file)
		isMarkdown := mdExts["*"] || mdExts[strings.ToLower(filepath.Ext(file))]

		var fixed bytes.Buffer
		changed := false
		err := forEachLine(path, func(line []byte) error {
			trimmed := trimLineWhitespace(line, isMarkdown)
			if !bytes.Equal(trimmed, line) {
				changed = true
			}
			fixed.Write(trimmed)
			return nil
		})
		if err != nil {
			failed = true
			failf(&out, "%s: %v", file, err)
			continue
		}
		if changed {
			if err := rewriteFile(path, fixed.Bytes()); err != nil {
				failf(&out, "%s: %v", file, err)
			} else {
				failf(&out, "Fixing %s", file)
			}
			failed = true
		}
	}
	return finish(failed, &out)
}

// trimLineWhitespace strips trailing spaces/tabs ahead of the line ending.
// For markdown files, exactly-two trailing spaces are a hard break and stay.
func trimLineWhitespace(line []byte, markdown bool) []byte {
	body := line
	var eol []byte
	if n := len(body); n > 0 && body[n-1] == '\n' {
		if n > 1 && body[n-2] == '\r' {
			body, eol = body[:n-2], line[n-2:]
		} else {
			body, eol = body[:n-1], line[n-1:]
		}
	}

	trimmed := bytes.TrimRight(body, " \t")
	if markdown && len(body) >= len(trimmed)+2 && bytes.HasSuffix(body, []byte("  ")) && !bytes.HasSuffix(body, []byte("\t")) {
		// Preserve a markdown linebreak as exactly two spaces.
		if len(trimmed) > 0 {
			trimmed = append(append([]byte{}, trimmed...), ' ', ' ')
		}
	}
	return append(trimmed, eol...)
}

// endOfFileFixer makes every file end with exactly one newline; an empty
// file stays empty.
func endOfFileFixer(ctx *Context) (int, []byte) {
	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		path := ctx.resolve(file)
		data, err := readAll(path)
		if err != nil {
			failed = true
			failf(&out, "%s: %v", file, err)
			continue
		}
		if len(data) == 0 {
			continue
		}

		fixed := bytes.TrimRight(data, "\r\n")
		if len(fixed) > 0 {
			fixed = append(fixed, '\n')
		}

		if !bytes.Equal(fixed, data) {
			if err := rewriteFile(path, fixed); err != nil {
				failf(&out, "%s: %v", file, err)
			} else {
				failf(&out, "Fixing %s", file)
			}
			failed = true
		}
	}
	return finish(failed, &out)
}

// mixedLineEnding normalizes CRLF/LF per --fix: "auto" (default) rewrites
// to the file's dominant ending, "lf"/"crlf" force one, "no" only checks.
func mixedLineEnding(ctx *Context) (int, []byte) {
	fix, _ := argValue(ctx.Args, "--fix")
	if fix == "" {
		fix = "auto"
	}

	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		path := ctx.resolve(file)
		data, err := readAll(path)
		if err != nil {
			failed = true
			failf(&out, "%s: %v", file, err)
			continue
		}

		crlf := bytes.Count(data, []byte("\r\n"))
		lf := bytes.Count(data, []byte("\n")) - crlf

		var target string
		switch fix {
		case "no":
			if crlf > 0 && lf > 0 {
				failed = true
				failf(&out, "%s: mixed line endings", file)
			}
			continue
		case "lf":
			target = "\n"
		case "crlf":
			target = "\r\n"
		default: // auto: only touch files that actually mix endings
			if crlf == 0 || lf == 0 {
				continue
			}
			if crlf >= lf {
				target = "\r\n"
			} else {
				target = "\n"
			}
		}

		normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
		if target == "\r\n" {
			normalized = bytes.ReplaceAll(normalized, []byte("\n"), []byte("\r\n"))
		}
		if !bytes.Equal(normalized, data) {
			if err := rewriteFile(path, normalized); err != nil {
				failf(&out, "%s: %v", file, err)
			} else {
				failf(&out, "Fixing %s", file)
			}
			failed = true
		}
	}
	return finish(failed, &out)
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

func fixByteOrderMarker(ctx *Context) (int, []byte) {
	var out bytes.Buffer
	failed := false
	for _, file := range ctx.Files {
		path := ctx.resolve(file)
		data, err := readAll(path)
		if err != nil {
			failed = true
			failf(&out, "%s: %v", file, err)
			continue
		}
		if !bytes.HasPrefix(data, utf8BOM) {
			continue
		}
		if err := rewriteFile(path, data[len(utf8BOM):]); err != nil {
			failf(&out, "%s: %v", file, err)
		} else {
			failf(&out, "%s: removed byte-order marker", file)
		}
		failed = true
	}
	return finish(failed, &out)
}
