// Package config defines the logical configuration model shared by every
// surface syntax: an ordered list of repo entries, each selecting hooks, plus
// project-level filters and defaults. Loading from YAML or TOML lives in
// loader.go; this file is the model and its validation rules.
package config

import (
	"fmt"
	"strings"
)

// Config filenames recognized within a project directory, in precedence
// order: the tool-specific TOML name first, then the two legacy YAML names.
const (
	ConfigFileName       = "prek.toml"
	LegacyConfigFileName = ".pre-commit-config.yaml"
	LegacyConfigFileAlt  = ".pre-commit-config.yml"
)

// ManifestFileName is the hook manifest shipped inside a remote hook repo.
const ManifestFileName = ".pre-commit-hooks.yaml"

// Sentinel repo URLs selecting the non-remote repo kinds.
const (
	RepoLocal   = "local"
	RepoMeta    = "meta"
	RepoBuiltin = "builtin"
)

// LanguageSystem is the passthrough language; it is the only language
// permitted on meta and builtin hooks.
const LanguageSystem = "system"

// Config is the logical form of one project's configuration, independent of
// whether it was parsed from TOML or YAML.
type Config struct {
	Repos                   []Repo            `yaml:"repos"                                toml:"repos"`
	Files                   Pattern           `yaml:"files,omitempty"                      toml:"files,omitempty"`
	Exclude                 Pattern           `yaml:"exclude,omitempty"                    toml:"exclude,omitempty"`
	FailFast                bool              `yaml:"fail_fast,omitempty"                  toml:"fail_fast,omitempty"`
	DefaultStages           []string          `yaml:"default_stages,omitempty"             toml:"default_stages,omitempty"`
	DefaultLanguageVersion  map[string]string `yaml:"default_language_version,omitempty"   toml:"default_language_version,omitempty"`
	DefaultInstallHookTypes []string          `yaml:"default_install_hook_types,omitempty" toml:"default_install_hook_types,omitempty"`
	MinimumVersion          string            `yaml:"minimum_prek_version,omitempty"       toml:"minimum_prek_version,omitempty"`
	Orphan                  bool              `yaml:"orphan,omitempty"                     toml:"orphan,omitempty"`
}

// RepoKind discriminates the repo entry variants.
type RepoKind int

const (
	// KindRemote is a hook repository cloned from a URL at a revision.
	KindRemote RepoKind = iota
	// KindLocal declares hooks fully inline in the user's config.
	KindLocal
	// KindMeta selects hooks that operate on the configuration itself.
	KindMeta
	// KindBuiltin selects the native hook implementations directly.
	KindBuiltin
)

// Repo is one entry of the config's repos list.
type Repo struct {
	Repo  string `yaml:"repo"          toml:"repo"`
	Rev   string `yaml:"rev,omitempty" toml:"rev,omitempty"`
	Hooks []Hook `yaml:"hooks"         toml:"hooks"`
}

// Kind reports which repo variant this entry selects.
func (r Repo) Kind() RepoKind {
	switch r.Repo {
	case RepoLocal:
		return KindLocal
	case RepoMeta:
		return KindMeta
	case RepoBuiltin:
		return KindBuiltin
	default:
		return KindRemote
	}
}

// IsRemote reports whether the entry names a cloneable URL.
func (r Repo) IsRemote() bool { return r.Kind() == KindRemote }

// Hook is one hook after merging the repo manifest (for remote repos) with
// the user's override fields.
type Hook struct {
	// Identity.
	ID          string   `yaml:"id"                    toml:"id"`
	Alias       string   `yaml:"alias,omitempty"       toml:"alias,omitempty"`
	Name        string   `yaml:"name,omitempty"        toml:"name,omitempty"`
	Description string   `yaml:"description,omitempty" toml:"description,omitempty"`
	Language    string   `yaml:"language,omitempty"    toml:"language,omitempty"`
	Entry       string   `yaml:"entry,omitempty"       toml:"entry,omitempty"`
	Args        []string `yaml:"args,omitempty"        toml:"args,omitempty"`

	// File selection.
	Files         Pattern  `yaml:"files,omitempty"          toml:"files,omitempty"`
	Exclude       Pattern  `yaml:"exclude,omitempty"        toml:"exclude,omitempty"`
	Types         []string `yaml:"types,omitempty"          toml:"types,omitempty"`
	TypesOr       []string `yaml:"types_or,omitempty"       toml:"types_or,omitempty"`
	ExcludeTypes  []string `yaml:"exclude_types,omitempty"  toml:"exclude_types,omitempty"`
	AlwaysRun     bool     `yaml:"always_run,omitempty"     toml:"always_run,omitempty"`
	PassFilenames *bool    `yaml:"pass_filenames,omitempty" toml:"pass_filenames,omitempty"`

	// Lifecycle.
	Stages         []string `yaml:"stages,omitempty"               toml:"stages,omitempty"`
	MinimumVersion string   `yaml:"minimum_prek_version,omitempty" toml:"minimum_prek_version,omitempty"`

	// Execution policy.
	RequireSerial bool   `yaml:"require_serial,omitempty" toml:"require_serial,omitempty"`
	Priority      *int   `yaml:"priority,omitempty"       toml:"priority,omitempty"`
	FailFast      bool   `yaml:"fail_fast,omitempty"      toml:"fail_fast,omitempty"`
	Verbose       bool   `yaml:"verbose,omitempty"        toml:"verbose,omitempty"`
	LogFile       string `yaml:"log_file,omitempty"       toml:"log_file,omitempty"`

	// Environment.
	LanguageVersion string            `yaml:"language_version,omitempty"        toml:"language_version,omitempty"`
	AdditionalDeps  []string          `yaml:"additional_dependencies,omitempty" toml:"additional_dependencies,omitempty"`
	Env             map[string]string `yaml:"env,omitempty"                     toml:"env,omitempty"`
}

// ShouldPassFilenames reports whether candidate file paths are appended to
// the hook's command line (the default when pass_filenames is unset).
func (h Hook) ShouldPassFilenames() bool {
	return h.PassFilenames == nil || *h.PassFilenames
}

// EffectiveTypes returns the hook's types filter, defaulting to {file}.
func (h Hook) EffectiveTypes() []string {
	if len(h.Types) == 0 {
		return []string{"file"}
	}
	return h.Types
}

// EffectiveStages returns the hook's stages, falling back to the config's
// default_stages. An empty result means every stage.
func (h Hook) EffectiveStages(defaults []string) []string {
	if len(h.Stages) > 0 {
		return h.Stages
	}
	return defaults
}

// RunsAtStage reports whether the hook is eligible at stage given the
// config's default_stages.
func (h Hook) RunsAtStage(stage string, defaults []string) bool {
	stages := h.EffectiveStages(defaults)
	if len(stages) == 0 {
		return true
	}
	for _, s := range stages {
		if s == stage || legacyStageName(s) == stage {
			return true
		}
	}
	return false
}

// legacyStageName maps the legacy short stage names onto the git hook names.
func legacyStageName(s string) string {
	switch s {
	case "commit":
		return "pre-commit"
	case "push":
		return "pre-push"
	case "merge-commit":
		return "pre-merge-commit"
	default:
		return s
	}
}

// Validate applies the model invariants: required fields per repo kind,
// entry forbidden on meta and builtin repos, meta/builtin restricted to the system
// passthrough language.
func (c *Config) Validate() error {
	for i, repo := range c.Repos {
		if err := repo.validate(); err != nil {
			return fmt.Errorf("repos[%d]: %w", i, err)
		}
	}
	return nil
}

func (r Repo) validate() error {
	if r.Repo == "" {
		return fmt.Errorf("repository URL is required")
	}
	if r.IsRemote() && r.Rev == "" {
		return fmt.Errorf("rev is required for remote repository %s", r.Repo)
	}
	if len(r.Hooks) == 0 {
		return fmt.Errorf("no hooks configured for repository %s", r.Repo)
	}

	for j, hook := range r.Hooks {
		if err := r.validateHook(hook); err != nil {
			return fmt.Errorf("hooks[%d]: %w", j, err)
		}
	}
	return nil
}

func (r Repo) validateHook(h Hook) error {
	if h.ID == "" {
		return fmt.Errorf("hook ID is required")
	}
	if h.Priority != nil && *h.Priority < 0 {
		return fmt.Errorf("hook %s: priority must be non-negative", h.ID)
	}

	switch r.Kind() {
	case KindLocal:
		var missing []string
		if h.Name == "" {
			missing = append(missing, "name")
		}
		if h.Entry == "" {
			missing = append(missing, "entry")
		}
		if h.Language == "" {
			missing = append(missing, "language")
		}
		if len(missing) > 0 {
			return fmt.Errorf("hook %s: local hooks require %s", h.ID, strings.Join(missing, ", "))
		}
	case KindMeta, KindBuiltin:
		if h.Entry != "" {
			return fmt.Errorf("hook %s: entry is not allowed for %s hooks", h.ID, r.Repo)
		}
		if h.Language != "" && h.Language != LanguageSystem {
			return fmt.Errorf("hook %s: language must be %q for %s hooks", h.ID, LanguageSystem, r.Repo)
		}
	case KindRemote:
		// Remote hook fields are completed from the manifest during merge.
	}
	return nil
}
