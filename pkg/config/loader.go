package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// configFileNames lists the recognized filenames in precedence order.
var configFileNames = []string{ConfigFileName, LegacyConfigFileName, LegacyConfigFileAlt}

// FindConfigFile returns the path of the config file in dir, honoring the
// filename precedence order, or "" when dir has no config.
func FindConfigFile(dir string) string {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// IsConfigFileName reports whether name is one of the recognized config
// filenames.
func IsConfigFileName(name string) bool {
	for _, n := range configFileNames {
		if name == n {
			return true
		}
	}
	return false
}

// LoadConfig reads and parses a project configuration, selecting the surface
// syntax from the file extension: .toml uses the table syntax, everything
// else the indentation syntax.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath) // #nosec G304 -- user-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("config file %s is empty", configPath)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	} else {
		warnUnknownKeys(configPath, data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return &cfg, nil
}

// EncodeTOML renders a config in the table surface syntax, used by the
// yaml-to-toml conversion helper.
func EncodeTOML(cfg *Config) ([]byte, error) {
	var buf strings.Builder
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config as TOML: %w", err)
	}
	return []byte(buf.String()), nil
}

// knownTopLevelKeys is consulted for the unknown-key warning; unknown keys
// never fail the load.
var knownTopLevelKeys = map[string]bool{
	"repos": true, "files": true, "exclude": true, "fail_fast": true,
	"default_stages": true, "default_language_version": true,
	"default_install_hook_types": true, "minimum_prek_version": true,
	"minimum_pre_commit_version": true, "orphan": true, "ci": true,
}

func warnUnknownKeys(configPath string, data []byte) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		if !knownTopLevelKeys[key] {
			fmt.Fprintf(os.Stderr, "[WARN] %s: unknown top-level key %q (line %d)\n",
				configPath, key, root.Content[i].Line)
		}
	}
}
