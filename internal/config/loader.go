package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LookupFunc resolves an environment variable; os.LookupEnv in production.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from path on top of Defaults, overlays the
// decision environment and validates the result. An empty path means
// defaults only.
func Load(path string, lookup LookupFunc) (*Config, error) {
	cfg, err := Read(path, lookup)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read is Load without validation.
func Read(path string, lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Defaults()
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
		}
		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path or run with --config flag", absPath)
		}
		if err := Parse(data, cfg, lookup); err != nil {
			return nil, fmt.Errorf("%s: %w", absPath, err)
		}
	}

	cfg.ApplyEnv(lookup)
	return cfg, nil
}

// Parse decodes YAML data into cfg after ${VAR} interpolation. Keys absent
// from data keep the values already in cfg.
func Parse(data []byte, cfg *Config, lookup LookupFunc) error {
	interpolated := interpolateEnv(string(data), lookup)
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ApplyEnv overlays the variables a decision task is started with. Set
// variables win over file values.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	overlay := []struct {
		key string
		dst *string
	}{
		{"TASK_ID", &c.Decision.TaskID},
		{"TASK_OWNER", &c.Decision.Owner},
		{"TASK_SOURCE", &c.Decision.Source},
		{"GIT_URL", &c.Decision.GitURL},
		{"GIT_REF", &c.Decision.GitRef},
		{"GIT_SHA", &c.Decision.GitSHA},
	}
	for _, o := range overlay {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.dst = v
		}
	}

	if c.Taskcluster.RootURL == "" {
		if v, ok := lookup("TASKCLUSTER_PROXY_URL"); ok && v != "" {
			c.Taskcluster.RootURL = v
		} else if v, ok := lookup("TASKCLUSTER_ROOT_URL"); ok && v != "" {
			c.Taskcluster.RootURL = v
		}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string, lookup LookupFunc) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := lookup(varName); exists {
			return value
		}
		return match
	})
}
