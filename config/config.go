// Package config loads validation profiles from YAML. A profile names an
// enabled-rule subset and may override the schema source; the CLI selects
// one with --profile.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Profile selects a rule subset and optional schema overrides.
type Profile struct {
	// EnabledRules, when non-empty, restricts the run to exactly these
	// rules. Opt-in rules only run when named here.
	EnabledRules []string `yaml:"enabled_rules"`

	// DisabledRules are excluded even when EnabledRules is empty.
	DisabledRules []string `yaml:"disabled_rules"`

	// SchemaSource overrides the bundle fetch location template.
	SchemaSource string `yaml:"schema_source"`
}

// Config is the on-disk configuration file.
type Config struct {
	Profiles map[string]Profile `yaml:"profiles"`

	// SchemaSource is the global fetch location template; a profile's
	// own value wins over it.
	SchemaSource string `yaml:"schema_source"`

	// CacheDir overrides the schema cache location.
	CacheDir string `yaml:"cache_dir"`
}

// Load reads a configuration file and applies environment overrides.
// A missing path yields an empty configuration, not an error; env
// variables still apply. Recognised variables: TXVALIDATE_SCHEMA_SOURCE,
// TXVALIDATE_CACHE_DIR.
func Load(path string) (*Config, error) {
	// .env files are a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("TXVALIDATE_SCHEMA_SOURCE"); v != "" {
		cfg.SchemaSource = v
	}
	if v := os.Getenv("TXVALIDATE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	return cfg, nil
}

// ProfileNamed returns a profile by name.
func (c *Config) ProfileNamed(name string) (Profile, bool) {
	p, ok := c.Profiles[name]
	return p, ok
}
