package language

import (
	"fmt"
	"strconv"
	"strings"
)

// Version request keywords shared by every backend.
const (
	VersionDefault = "default"
	VersionSystem  = "system"
)

// VersionRequest is a parsed language_version value: "default", "system",
// or a dotted numeric request used both to select among discovered installs
// and, where supported, to pick a download.
type VersionRequest struct {
	raw   string
	parts []int
}

// ParseVersionRequest normalizes a language_version string. An empty value
// means "default".
func ParseVersionRequest(raw string) (VersionRequest, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == VersionDefault {
		return VersionRequest{raw: VersionDefault}, nil
	}
	if raw == VersionSystem {
		return VersionRequest{raw: VersionSystem}, nil
	}

	trimmed := strings.TrimPrefix(raw, "v")
	// Python configs commonly write "python3.12"; drop a leading run of
	// letters before the numeric part.
	if i := strings.IndexAny(trimmed, "0123456789"); i > 0 {
		prefix := trimmed[:i]
		if strings.IndexFunc(prefix, func(r rune) bool {
			return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
		}) < 0 {
			trimmed = trimmed[i:]
		}
	}

	var parts []int
	for _, p := range strings.Split(trimmed, ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			return VersionRequest{}, fmt.Errorf("invalid version request %q", raw)
		}
		parts = append(parts, n)
	}
	return VersionRequest{raw: raw, parts: parts}, nil
}

// IsDefault reports whether the backend should use its default resolution.
func (v VersionRequest) IsDefault() bool { return v.raw == VersionDefault }

// IsSystem reports whether only a system install is acceptable.
func (v VersionRequest) IsSystem() bool { return v.raw == VersionSystem }

// IsNumeric reports whether a concrete version was requested.
func (v VersionRequest) IsNumeric() bool { return len(v.parts) > 0 }

// Normalized returns the canonical request string used in env keys, so
// "v3.12" and "python3.12" share an environment with "3.12".
func (v VersionRequest) Normalized() string {
	if !v.IsNumeric() {
		return v.raw
	}
	strs := make([]string, len(v.parts))
	for i, p := range v.parts {
		strs[i] = strconv.Itoa(p)
	}
	return strings.Join(strs, ".")
}

// Matches reports whether a discovered version satisfies the request as a
// component-wise prefix: a "3.12" request accepts "3.12.4".
func (v VersionRequest) Matches(actual string) bool {
	if !v.IsNumeric() {
		return true
	}
	actualParts, err := numericParts(actual)
	if err != nil {
		return false
	}
	if len(actualParts) < len(v.parts) {
		return false
	}
	for i, want := range v.parts {
		if actualParts[i] != want {
			return false
		}
	}
	return true
}

func numericParts(version string) ([]int, error) {
	version = strings.TrimSpace(strings.TrimPrefix(version, "v"))
	if i := strings.IndexAny(version, "-+ "); i >= 0 {
		version = version[:i]
	}
	var parts []int
	for _, p := range strings.Split(version, ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("malformed version %q", version)
		}
		parts = append(parts, n)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty version")
	}
	return parts, nil
}
