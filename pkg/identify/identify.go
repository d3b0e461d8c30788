// Package identify classifies a path into a set of semantic tags consumed
// by hook type filters: structural tags (file, symlink, executable, text,
// binary), extension-derived tags, and shebang-derived tags for extensionless
// scripts.
package identify

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Tags is the set of tags attached to one path.
type Tags map[string]bool

// Has reports whether tag is present.
func (t Tags) Has(tag string) bool { return t[tag] }

// HasAll reports whether every tag in want is present (AND semantics for a
// hook's types filter).
func (t Tags) HasAll(want []string) bool {
	for _, tag := range want {
		if !t[tag] {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one tag in want is present (OR semantics
// for types_or). An empty want matches.
func (t Tags) HasAny(want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, tag := range want {
		if t[tag] {
			return true
		}
	}
	return false
}

// HasNone reports whether no tag in want is present (exclude_types).
func (t Tags) HasNone(want []string) bool {
	for _, tag := range want {
		if t[tag] {
			return false
		}
	}
	return true
}

// Sorted returns the tags in deterministic order, for display.
func (t Tags) Sorted() []string {
	out := make([]string, 0, len(t))
	for tag := range t {
		out = append(out, tag)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// extensionTags is the closed tag vocabulary keyed by lowercase extension.
var extensionTags = map[string][]string{
	".py":       {"python"},
	".pyi":      {"python", "pyi"},
	".pyx":      {"python", "cython"},
	".js":       {"javascript"},
	".jsx":      {"javascript", "jsx"},
	".mjs":      {"javascript"},
	".ts":       {"ts"},
	".tsx":      {"ts", "tsx"},
	".go":       {"go"},
	".rs":       {"rust"},
	".rb":       {"ruby"},
	".lua":      {"lua"},
	".pl":       {"perl"},
	".pm":       {"perl"},
	".sh":       {"shell", "sh"},
	".bash":     {"shell", "bash"},
	".zsh":      {"shell", "zsh"},
	".fish":     {"shell", "fish"},
	".yaml":     {"yaml"},
	".yml":      {"yaml"},
	".json":     {"json"},
	".json5":    {"json5"},
	".toml":     {"toml"},
	".ini":      {"ini"},
	".cfg":      {"ini"},
	".xml":      {"xml"},
	".html":     {"html"},
	".htm":      {"html"},
	".css":      {"css"},
	".scss":     {"scss"},
	".md":       {"markdown"},
	".markdown": {"markdown"},
	".rst":      {"rst"},
	".txt":      {"plain-text"},
	".c":        {"c"},
	".h":        {"c", "header"},
	".cpp":      {"c++"},
	".cc":       {"c++"},
	".hpp":      {"c++", "header"},
	".cs":       {"c#"},
	".java":     {"java"},
	".kt":       {"kotlin"},
	".scala":    {"scala"},
	".swift":    {"swift"},
	".dart":     {"dart"},
	".hs":       {"haskell"},
	".ex":       {"elixir"},
	".exs":      {"elixir"},
	".erl":      {"erlang"},
	".jl":       {"julia"},
	".r":        {"r"},
	".sql":      {"sql"},
	".tf":       {"terraform"},
	".tfvars":   {"terraform"},
	".proto":    {"protobuf"},
	".ps1":      {"powershell"},
	".bat":      {"batch"},
	".vim":      {"vim"},
	".tex":      {"tex"},
	".svg":      {"svg", "xml"},
	".csv":      {"csv"},
	".zig":      {"zig"},
	".nim":      {"nim"},
	".groovy":   {"groovy"},
	".gradle":   {"groovy"},
	".php":      {"php"},
}

// nameTags assigns tags by exact (lowercased) basename, for the well-known
// extensionless files.
var nameTags = map[string][]string{
	"dockerfile":     {"dockerfile"},
	"makefile":       {"makefile"},
	"gnumakefile":    {"makefile"},
	"gemfile":        {"ruby"},
	"rakefile":       {"ruby"},
	"vagrantfile":    {"ruby"},
	"cmakelists.txt": {"cmake"},
	"go.mod":         {"go-mod"},
	"go.sum":         {"go-sum"},
	"cargo.toml":     {"toml", "cargo"},
	"cargo.lock":     {"toml", "cargo-lock"},
}

// shebangTags maps a shebang interpreter basename to its tag.
var shebangTags = map[string]string{
	"python":  "python",
	"python2": "python",
	"python3": "python",
	"sh":      "shell",
	"bash":    "shell",
	"zsh":     "shell",
	"dash":    "shell",
	"node":    "javascript",
	"ruby":    "ruby",
	"perl":    "perl",
	"lua":     "lua",
	"php":     "php",
	"Rscript": "r",
}

// binaryExtensions short-circuits content sniffing for well-known binary
// formats.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".gz": true, ".bz2": true, ".xz": true,
	".tar": true, ".jar": true, ".whl": true, ".exe": true, ".dll": true,
	".so": true, ".dylib": true, ".o": true, ".a": true, ".class": true,
	".pyc": true, ".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".webm": true, ".webp": true, ".avif": true,
}

// Identify classifies path. Structural tags reflect the filesystem at path;
// extension and name tags are derived from the path alone; a shebang tag is
// only consulted when no extension tag matched and the file is readable.
func Identify(path string) Tags {
	tags := Tags{}

	info, err := os.Lstat(path)
	switch {
	case err != nil:
		// A path that can't be stat'd (e.g. from --files on a deleted entry)
		// still gets its path-derived tags so filters behave predictably.
		tags["file"] = true
	case info.Mode()&os.ModeSymlink != 0:
		tags["symlink"] = true
		return addPathTags(tags, path)
	case info.IsDir():
		tags["directory"] = true
		return tags
	default:
		tags["file"] = true
		if isExecutable(path, info.Mode()) {
			tags["executable"] = true
		} else {
			tags["non-executable"] = true
		}
	}

	tags = addPathTags(tags, path)

	hadExtTag := hasLanguageTag(tags)
	if !hadExtTag && info != nil && info.Mode().IsRegular() {
		if tag := shebangTag(path); tag != "" {
			tags[tag] = true
			hadExtTag = true
		}
	}

	if classifyContent(path, filepath.Ext(path)) {
		tags["text"] = true
	} else {
		tags["binary"] = true
	}
	return tags
}

func addPathTags(tags Tags, path string) Tags {
	ext := strings.ToLower(filepath.Ext(path))
	for _, tag := range extensionTags[ext] {
		tags[tag] = true
	}
	name := strings.ToLower(filepath.Base(path))
	for _, tag := range nameTags[name] {
		tags[tag] = true
	}
	if strings.HasPrefix(name, "dockerfile.") {
		tags["dockerfile"] = true
	}
	return tags
}

func hasLanguageTag(tags Tags) bool {
	for tag := range tags {
		switch tag {
		case "file", "directory", "symlink", "executable", "non-executable", "text", "binary":
		default:
			return true
		}
	}
	return false
}

// isExecutable consults the filesystem mode bits; on platforms where those
// are unreliable the extension stands in for the index's mode bits.
func isExecutable(path string, mode os.FileMode) bool {
	if runtime.GOOS == "windows" {
		ext := strings.ToLower(filepath.Ext(path))
		return ext == ".exe" || ext == ".bat" || ext == ".cmd" || ext == ".com"
	}
	return mode&0o111 != 0
}

// shebangTag reads the first line of path and maps its interpreter onto a
// tag, handling the "#!/usr/bin/env interpreter" indirection.
func shebangTag(path string) string {
	f, err := os.Open(path) // #nosec G304 -- candidate file from git
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 4096), 4096)
	if !scanner.Scan() {
		return ""
	}
	line := scanner.Text()
	if !strings.HasPrefix(line, "#!") {
		return ""
	}

	fields := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(fields) == 0 {
		return ""
	}
	interp := filepath.Base(fields[0])
	if interp == "env" && len(fields) > 1 {
		interp = filepath.Base(fields[1])
	}
	// python3.12 etc. still counts as python.
	for prefix, tag := range shebangTags {
		if interp == prefix || strings.HasPrefix(interp, prefix+".") || strings.HasPrefix(interp, prefix+"-") {
			return tag
		}
	}
	if strings.HasPrefix(interp, "python") {
		return "python"
	}
	return ""
}

// classifyContent reports whether path looks like text: a known binary
// extension loses immediately, otherwise the first KiB is checked for NUL
// bytes the way git does.
func classifyContent(path, ext string) bool {
	if binaryExtensions[strings.ToLower(ext)] {
		return false
	}

	f, err := os.Open(path) // #nosec G304 -- candidate file from git
	if err != nil {
		return true
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, _ := f.Read(buf)
	return !bytes.ContainsRune(buf[:n], 0)
}
