package config

import (
	"errors"
	"fmt"
	"strings"

	units "github.com/docker/go-units"

	"github.com/mozilla/appservices-decision/internal/taskcluster"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks cfg and reports every problem found, joined.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		add("log_level must be one of: debug, info, warn, error (got %q)", cfg.LogLevel)
	}
	if f := strings.ToLower(cfg.LogFormat); f != "json" && f != "text" {
		add("log_format must be json or text (got %q)", cfg.LogFormat)
	}

	if strings.Count(cfg.TaskNameTemplate, "%s") != 1 || strings.Count(cfg.TaskNameTemplate, "%") != 1 {
		add("task_name_template must contain exactly one %%s (got %q)", cfg.TaskNameTemplate)
	}
	if cfg.IndexPrefix == "" {
		add("index_prefix is required")
	} else if strings.HasPrefix(cfg.IndexPrefix, ".") || strings.HasSuffix(cfg.IndexPrefix, ".") {
		add("index_prefix must not start or end with a dot (got %q)", cfg.IndexPrefix)
	}

	for field, value := range map[string]string{
		"scheduler_id":   cfg.SchedulerID,
		"provisioner_id": cfg.ProvisionerID,
		"worker_type":    cfg.WorkerType,
	} {
		if value == "" {
			add("%s is required", field)
		}
	}

	offsets := []struct {
		field string
		value string
	}{
		{"deadline_in", cfg.DeadlineIn},
		{"expires_in", cfg.ExpiresIn},
		{"expiry.build_artifacts", cfg.Expiry.BuildArtifacts},
		{"expiry.build_dependencies_artifacts", cfg.Expiry.BuildDependenciesArtifacts},
		{"expiry.log_artifacts", cfg.Expiry.LogArtifacts},
		{"expiry.docker_images", cfg.Expiry.DockerImages},
		{"expiry.repacked_msi_files", cfg.Expiry.RepackedMSIFiles},
	}
	for _, o := range offsets {
		d, err := taskcluster.ParseOffset(o.value)
		if err != nil {
			add("%s: %v", o.field, err)
			continue
		}
		if d <= 0 {
			add("%s must be a positive offset (got %q)", o.field, o.value)
		}
	}

	switch cfg.SourceHash {
	case SourceHashGit, SourceHashBlake3:
	default:
		add("source_hash must be %q or %q (got %q)", SourceHashGit, SourceHashBlake3, cfg.SourceHash)
	}
	if cfg.RepoRoot == "" {
		add("repo_root is required")
	}
	if cfg.DockerDir == "" {
		add("docker_dir is required")
	}

	if cfg.Build.MaxRunTimeMinutes <= 0 {
		add("build.max_run_time_minutes must be positive")
	}
	if _, err := units.RAMInBytes(cfg.Build.SccacheCacheSize); err != nil {
		add("build.sccache_cache_size: %v", err)
	}
	if cfg.Build.ImageBuilderImage == "" {
		add("build.image_builder_image is required")
	}

	if cfg.Taskcluster.Timeout <= 0 {
		add("taskcluster.timeout must be positive")
	}

	if cfg.Serve.Webhook.MaxBodySize != "" {
		if _, err := units.RAMInBytes(cfg.Serve.Webhook.MaxBodySize); err != nil {
			add("serve.webhook.max_body_size: %v", err)
		}
	}
	if envVarPattern.MatchString(cfg.Serve.Webhook.Secret) {
		add("serve.webhook.secret: environment variable %s is not set", cfg.Serve.Webhook.Secret)
	}

	return errors.Join(errs...)
}

// ValidateSubmission checks what Create needs on top of Validate: the
// decision environment and a reachable task service.
func ValidateSubmission(cfg *Config) error {
	var missing []string
	for _, v := range []struct {
		name  string
		value string
	}{
		{"TASK_ID", cfg.Decision.TaskID},
		{"TASK_OWNER", cfg.Decision.Owner},
		{"TASK_SOURCE", cfg.Decision.Source},
		{"GIT_URL", cfg.Decision.GitURL},
		{"GIT_REF", cfg.Decision.GitRef},
		{"GIT_SHA", cfg.Decision.GitSHA},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("decision environment incomplete, missing: %s", strings.Join(missing, ", "))
	}
	if cfg.Taskcluster.RootURL == "" {
		return fmt.Errorf("taskcluster.root_url is not set and neither TASKCLUSTER_PROXY_URL nor TASKCLUSTER_ROOT_URL is present")
	}
	return nil
}
