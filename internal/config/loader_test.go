package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decision.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "Application Services: %s", cfg.TaskNameTemplate)
	assert.Equal(t, "project.application-services.application-services", cfg.IndexPrefix)
	assert.Equal(t, "1 month", cfg.Expiry.BuildArtifacts)
	assert.Equal(t, "3 month", cfg.Expiry.BuildDependenciesArtifacts)
	assert.Equal(t, "1 year", cfg.Expiry.LogArtifacts)
	assert.Equal(t, "3 month", cfg.Expiry.DockerImages)
	assert.Equal(t, "3 month", cfg.Expiry.RepackedMSIFiles)
	assert.Equal(t, 60, cfg.Build.MaxRunTimeMinutes)
	assert.Equal(t, SourceHashGit, cfg.SourceHash)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
index_prefix: garbage.decision
source_hash: blake3
taskcluster:
  root_url: ${TC_ROOT}
  timeout: 10s
expiry:
  build_artifacts: 2 weeks
`)
	cfg, err := Load(path, envMap(map[string]string{"TC_ROOT": "http://127.0.0.1:8080"}))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "garbage.decision", cfg.IndexPrefix)
	assert.Equal(t, SourceHashBlake3, cfg.SourceHash)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Taskcluster.RootURL)
	assert.Equal(t, 10*time.Second, cfg.Taskcluster.Timeout)
	assert.Equal(t, "2 weeks", cfg.Expiry.BuildArtifacts)
	// untouched keys keep their defaults
	assert.Equal(t, "1 year", cfg.Expiry.LogArtifacts)
	assert.Equal(t, "application-services-r", cfg.WorkerType)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")

	_, err = Load(writeConfig(t, "log_level: [oops"), envMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")

	_, err = Load(writeConfig(t, "expires_in: forever\n"), envMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expires_in")
}

func TestRead_SkipsValidation(t *testing.T) {
	path := writeConfig(t, "expires_in: forever\n")

	cfg, err := Read(path, envMap(map[string]string{"TASK_ID": "decision-id"}))
	require.NoError(t, err)
	assert.Equal(t, "forever", cfg.ExpiresIn)
	assert.Equal(t, "decision-id", cfg.Decision.TaskID)
	require.Error(t, Validate(cfg))
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	cfg.Decision.GitRef = "refs/heads/from-file"

	cfg.ApplyEnv(envMap(map[string]string{
		"TASK_ID":               "decision-id",
		"TASK_OWNER":            "dev@example.org",
		"TASK_SOURCE":           "https://github.com/mozilla/application-services",
		"GIT_URL":               "https://github.com/mozilla/application-services",
		"GIT_REF":               "refs/tags/v0.7.0",
		"GIT_SHA":               "0123abcd",
		"TASKCLUSTER_PROXY_URL": "http://taskcluster",
	}))

	assert.Equal(t, "decision-id", cfg.Decision.TaskID)
	assert.Equal(t, "dev@example.org", cfg.Decision.Owner)
	assert.Equal(t, "refs/tags/v0.7.0", cfg.Decision.GitRef)
	assert.Equal(t, "0123abcd", cfg.Decision.GitSHA)
	assert.Equal(t, "http://taskcluster", cfg.Taskcluster.RootURL)
}

func TestApplyEnv_KeepsConfiguredRootURL(t *testing.T) {
	cfg := Defaults()
	cfg.Taskcluster.RootURL = "http://localhost:8080"
	cfg.ApplyEnv(envMap(map[string]string{"TASKCLUSTER_PROXY_URL": "http://taskcluster"}))
	assert.Equal(t, "http://localhost:8080", cfg.Taskcluster.RootURL)
}

func TestInterpolateEnv(t *testing.T) {
	lookup := envMap(map[string]string{"A": "alpha"})
	assert.Equal(t, "x alpha y", interpolateEnv("x ${A} y", lookup))
	assert.Equal(t, "keep ${UNSET}", interpolateEnv("keep ${UNSET}", lookup))
	assert.Equal(t, "$A", interpolateEnv("$A", lookup))
}
