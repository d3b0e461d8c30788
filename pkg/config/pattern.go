package config

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
)

// Pattern is an include/exclude filter that accepts two shapes in config:
// a scalar, treated as a regular expression, or a list of strings, treated
// as glob patterns matched with ** semantics. An unset Pattern matches
// everything for includes and nothing for excludes; callers use IsZero to
// tell the two apart.
type Pattern struct {
	regex string
	globs []string

	compiled *regexp2.Regexp
}

// NewRegexPattern builds a Pattern from a regular expression string.
func NewRegexPattern(expr string) (Pattern, error) {
	p := Pattern{regex: expr}
	if err := p.compile(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// NewGlobPattern builds a Pattern from glob expressions.
func NewGlobPattern(globs ...string) (Pattern, error) {
	p := Pattern{globs: globs}
	if err := p.compile(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// IsZero reports whether no pattern was configured.
func (p *Pattern) IsZero() bool {
	return p.regex == "" && len(p.globs) == 0
}

// String returns the configured source text, for diagnostics.
func (p *Pattern) String() string {
	if p.regex != "" {
		return p.regex
	}
	return strings.Join(p.globs, ", ")
}

func (p *Pattern) compile() error {
	if p.regex != "" {
		re, err := regexp2.Compile(p.regex, regexp2.None)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p.regex, err)
		}
		p.compiled = re
	}
	for _, g := range p.globs {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("invalid glob pattern %q", g)
		}
	}
	return nil
}

// Matches reports whether the workspace-relative path matches the pattern.
// Paths are matched with forward slashes regardless of platform.
func (p *Pattern) Matches(path string) bool {
	path = strings.ReplaceAll(path, "\\", "/")

	if p.compiled != nil {
		ok, err := p.compiled.MatchString(path)
		return err == nil && ok
	}

	for _, g := range p.globs {
		if ok, err := doublestar.Match(g, path); err == nil && ok {
			return true
		}
	}
	return false
}

// UnmarshalYAML accepts either a scalar (regex) or a sequence (glob list).
func (p *Pattern) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		p.regex = s
	case yaml.SequenceNode:
		var globs []string
		if err := node.Decode(&globs); err != nil {
			return err
		}
		p.globs = globs
	default:
		return fmt.Errorf("pattern must be a string or a list of globs (line %d)", node.Line)
	}
	return p.compile()
}

// UnmarshalTOML accepts either a string (regex) or an array (glob list).
func (p *Pattern) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		p.regex = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("pattern list entries must be strings, got %T", item)
			}
			p.globs = append(p.globs, s)
		}
	default:
		return fmt.Errorf("pattern must be a string or a list of globs, got %T", data)
	}
	return p.compile()
}

// MarshalTOML writes the pattern back in the shape it was configured in.
func (p Pattern) MarshalTOML() ([]byte, error) {
	if p.regex != "" {
		return []byte(fmt.Sprintf("%q", p.regex)), nil
	}
	if len(p.globs) > 0 {
		quoted := make([]string, len(p.globs))
		for i, g := range p.globs {
			quoted[i] = fmt.Sprintf("%q", g)
		}
		return []byte("[" + strings.Join(quoted, ", ") + "]"), nil
	}
	return []byte(`""`), nil
}

// MarshalYAML writes the pattern back in the shape it was configured in.
func (p Pattern) MarshalYAML() (any, error) {
	if p.regex != "" {
		return p.regex, nil
	}
	if len(p.globs) > 0 {
		return p.globs, nil
	}
	return nil, nil
}
