package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadManifest parses the hook manifest shipped at the root of a hook
// repository.
func LoadManifest(repoPath string) ([]Hook, error) {
	manifestPath := filepath.Join(repoPath, ManifestFileName)
	data, err := os.ReadFile(manifestPath) // #nosec G304 -- store-internal repo path
	if err != nil {
		return nil, fmt.Errorf("failed to read hook manifest %s: %w", manifestPath, err)
	}

	var hooks []Hook
	if err := yaml.Unmarshal(data, &hooks); err != nil {
		return nil, fmt.Errorf("failed to parse hook manifest %s: %w", manifestPath, err)
	}
	return hooks, nil
}

// ValidateManifest applies the manifest-side invariants: every entry needs
// id, name, entry, and language.
func ValidateManifest(hooks []Hook) error {
	for i, h := range hooks {
		if h.ID == "" {
			return fmt.Errorf("manifest hook %d: id is required", i)
		}
		if h.Name == "" {
			return fmt.Errorf("manifest hook %s: name is required", h.ID)
		}
		if h.Entry == "" {
			return fmt.Errorf("manifest hook %s: entry is required", h.ID)
		}
		if h.Language == "" {
			return fmt.Errorf("manifest hook %s: language is required", h.ID)
		}
	}
	return nil
}

// MergeHook overlays the user's override fields onto the manifest's hook
// definition. The user config is authoritative for every field it sets,
// including priority.
func MergeHook(manifest, override Hook) Hook {
	merged := manifest
	merged.ID = override.ID

	if override.Alias != "" {
		merged.Alias = override.Alias
	}
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Description != "" {
		merged.Description = override.Description
	}
	if override.Language != "" {
		merged.Language = override.Language
	}
	if override.Entry != "" {
		merged.Entry = override.Entry
	}
	if override.Args != nil {
		merged.Args = override.Args
	}
	if !override.Files.IsZero() {
		merged.Files = override.Files
	}
	if !override.Exclude.IsZero() {
		merged.Exclude = override.Exclude
	}
	if override.Types != nil {
		merged.Types = override.Types
	}
	if override.TypesOr != nil {
		merged.TypesOr = override.TypesOr
	}
	if override.ExcludeTypes != nil {
		merged.ExcludeTypes = override.ExcludeTypes
	}
	if override.AlwaysRun {
		merged.AlwaysRun = true
	}
	if override.PassFilenames != nil {
		merged.PassFilenames = override.PassFilenames
	}
	if override.Stages != nil {
		merged.Stages = override.Stages
	}
	if override.MinimumVersion != "" {
		merged.MinimumVersion = override.MinimumVersion
	}
	if override.RequireSerial {
		merged.RequireSerial = true
	}
	if override.Priority != nil {
		merged.Priority = override.Priority
	}
	if override.FailFast {
		merged.FailFast = true
	}
	if override.Verbose {
		merged.Verbose = true
	}
	if override.LogFile != "" {
		merged.LogFile = override.LogFile
	}
	if override.LanguageVersion != "" {
		merged.LanguageVersion = override.LanguageVersion
	}
	if override.AdditionalDeps != nil {
		merged.AdditionalDeps = override.AdditionalDeps
	}
	if override.Env != nil {
		if merged.Env == nil {
			merged.Env = map[string]string{}
		}
		for k, v := range override.Env {
			merged.Env[k] = v
		}
	}
	return merged
}
