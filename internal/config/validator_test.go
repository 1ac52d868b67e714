package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, Validate(Defaults()))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"template without verb", func(c *Config) { c.TaskNameTemplate = "App Services" }, "task_name_template"},
		{"template with two verbs", func(c *Config) { c.TaskNameTemplate = "%s: %s" }, "task_name_template"},
		{"template with other verb", func(c *Config) { c.TaskNameTemplate = "%d %s" }, "task_name_template"},
		{"empty index prefix", func(c *Config) { c.IndexPrefix = "" }, "index_prefix is required"},
		{"dotted index prefix", func(c *Config) { c.IndexPrefix = "project.x." }, "index_prefix"},
		{"worker type", func(c *Config) { c.WorkerType = "" }, "worker_type is required"},
		{"bad offset", func(c *Config) { c.Expiry.LogArtifacts = "eventually" }, "expiry.log_artifacts"},
		{"offset out of range", func(c *Config) { c.ExpiresIn = "600 years" }, "expires_in: time offset \"600 years\": offset out of range"},
		{"negative offset", func(c *Config) { c.DeadlineIn = "-1 day" }, "deadline_in must be a positive offset"},
		{"source hash", func(c *Config) { c.SourceHash = "md5" }, "source_hash"},
		{"max run time", func(c *Config) { c.Build.MaxRunTimeMinutes = 0 }, "max_run_time_minutes"},
		{"cache size", func(c *Config) { c.Build.SccacheCacheSize = "lots" }, "sccache_cache_size"},
		{"body size", func(c *Config) { c.Serve.Webhook.MaxBodySize = "huge" }, "max_body_size"},
		{"unresolved secret", func(c *Config) { c.Serve.Webhook.Secret = "${HOOK_SECRET}" }, "HOOK_SECRET"},
		{"timeout", func(c *Config) { c.Taskcluster.Timeout = 0 }, "taskcluster.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.SourceHash = "md5"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "source_hash")
}

func TestValidateSubmission(t *testing.T) {
	cfg := Defaults()
	err := ValidateSubmission(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TASK_ID")
	assert.Contains(t, err.Error(), "GIT_SHA")

	cfg.Decision = DecisionEnv{
		TaskID: "d", Owner: "o", Source: "s",
		GitURL: "u", GitRef: "refs/heads/main", GitSHA: "sha",
	}
	err = ValidateSubmission(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root_url")

	cfg.Taskcluster.RootURL = "http://taskcluster"
	assert.NoError(t, ValidateSubmission(cfg))
}
