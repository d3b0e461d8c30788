package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ResolveEffectiveLanguageVersion determines the version request for a hook,
// preferring the hook's own language_version over the config's
// default_language_version map. An empty result means the language default.
func ResolveEffectiveLanguageVersion(hook Hook, cfg *Config) string {
	if hook.LanguageVersion != "" {
		return hook.LanguageVersion
	}
	if cfg != nil && cfg.DefaultLanguageVersion != nil {
		if v, ok := cfg.DefaultLanguageVersion[hook.Language]; ok {
			return v
		}
	}
	return ""
}

// CheckMinimumVersion enforces the minimum_prek_version gate: the running
// tool's version must be at least required. Development builds ("dev")
// always pass.
func CheckMinimumVersion(current, required string) error {
	if required == "" || current == "dev" || current == "" {
		return nil
	}
	cmp, err := compareVersions(current, required)
	if err != nil {
		return fmt.Errorf("invalid minimum_prek_version %q: %w", required, err)
	}
	if cmp < 0 {
		return fmt.Errorf("this configuration requires prek >= %s, but you have %s", required, current)
	}
	return nil
}

// compareVersions orders dotted numeric versions, ignoring a leading "v" and
// any pre-release suffix.
func compareVersions(a, b string) (int, error) {
	pa, err := versionParts(a)
	if err != nil {
		return 0, err
	}
	pb, err := versionParts(b)
	if err != nil {
		return 0, err
	}
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var na, nb int
		if i < len(pa) {
			na = pa[i]
		}
		if i < len(pb) {
			nb = pb[i]
		}
		if na != nb {
			if na < nb {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, nil
}

func versionParts(v string) ([]int, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return nil, fmt.Errorf("empty version")
	}
	var parts []int
	for _, p := range strings.Split(v, ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("malformed version component %q", p)
		}
		parts = append(parts, n)
	}
	return parts, nil
}
