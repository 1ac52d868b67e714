package config

import "time"

// Config represents the complete decision task configuration.
//
// It is loaded once and then passed explicitly to everything that needs it.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// TaskNameTemplate must contain exactly one %s, replaced by the task name.
	TaskNameTemplate string `yaml:"task_name_template"`
	IndexPrefix      string `yaml:"index_prefix"`

	SchedulerID                string `yaml:"scheduler_id"`
	ProvisionerID              string `yaml:"provisioner_id"`
	WorkerType                 string `yaml:"worker_type"`
	DockerImageBuildWorkerType string `yaml:"docker_image_build_worker_type,omitempty"`

	DeadlineIn string       `yaml:"deadline_in"`
	ExpiresIn  string       `yaml:"expires_in"`
	Expiry     ExpiryConfig `yaml:"expiry"`

	ScopesForAllSubtasks []string `yaml:"scopes_for_all_subtasks,omitempty"`
	RoutesForAllSubtasks []string `yaml:"routes_for_all_subtasks,omitempty"`

	// SourceHash selects how source subtrees are hashed for dedup keys: git or blake3.
	SourceHash string `yaml:"source_hash"`
	RepoRoot   string `yaml:"repo_root"`
	DockerDir  string `yaml:"docker_dir"`

	Build       BuildConfig       `yaml:"build"`
	Taskcluster TaskclusterConfig `yaml:"taskcluster"`
	Decision    DecisionEnv       `yaml:"decision"`
	Serve       ServeConfig       `yaml:"serve"`
}

// ExpiryConfig holds relative expiry offsets, e.g. "1 month".
type ExpiryConfig struct {
	BuildArtifacts             string `yaml:"build_artifacts"`
	BuildDependenciesArtifacts string `yaml:"build_dependencies_artifacts"`
	LogArtifacts               string `yaml:"log_artifacts"`
	DockerImages               string `yaml:"docker_images"`
	RepackedMSIFiles           string `yaml:"repacked_msi_files"`
}

// BuildConfig tunes the Linux build tasks.
type BuildConfig struct {
	MaxRunTimeMinutes int    `yaml:"max_run_time_minutes"`
	SccacheCacheSize  string `yaml:"sccache_cache_size"`
	ImageBuilderImage string `yaml:"image_builder_image"`
}

// TaskclusterConfig locates the Queue and Index.
type TaskclusterConfig struct {
	RootURL string        `yaml:"root_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DecisionEnv is what the decision task learns from its own environment.
// Inside CI every field comes from environment variables; see ApplyEnv.
type DecisionEnv struct {
	TaskID string `yaml:"task_id"`
	Owner  string `yaml:"owner"`
	Source string `yaml:"source"`
	GitURL string `yaml:"git_url"`
	GitRef string `yaml:"git_ref"`
	GitSHA string `yaml:"git_sha"`
}

// ServeConfig configures the local task service.
type ServeConfig struct {
	Listen   string        `yaml:"listen"`
	DBPath   string        `yaml:"db_path"`
	// LockPath defaults to decision.lock beside DBPath.
	LockPath string        `yaml:"lock_path,omitempty"`
	// APIToken, when set, is required as a bearer token by task creation.
	APIToken string        `yaml:"api_token,omitempty"`
	Webhook  WebhookConfig `yaml:"webhook"`
}

// WebhookConfig configures the GitHub webhook endpoint of the local service.
type WebhookConfig struct {
	Path            string `yaml:"path"`
	Secret          string `yaml:"secret,omitempty"`
	SignatureHeader string `yaml:"signature_header"`
	MaxBodySize     string `yaml:"max_body_size"`
}

// Defaults returns a Config carrying the values the application-services
// decision task has always used.
func Defaults() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "json",
		TaskNameTemplate: "Application Services: %s",
		IndexPrefix:      "project.application-services.application-services",
		SchedulerID:      "taskcluster-github",
		ProvisionerID:    "aws-provisioner-v1",
		WorkerType:       "application-services-r",
		DeadlineIn:       "1 day",
		ExpiresIn:        "1 year",
		Expiry: ExpiryConfig{
			BuildArtifacts:             "1 month",
			BuildDependenciesArtifacts: "3 month",
			LogArtifacts:               "1 year",
			DockerImages:               "3 month",
			RepackedMSIFiles:           "3 month",
		},
		SourceHash: SourceHashGit,
		RepoRoot:   ".",
		DockerDir:  "automation/taskcluster/docker",
		Build: BuildConfig{
			MaxRunTimeMinutes: 60,
			SccacheCacheSize:  "40G",
			ImageBuilderImage: "servobrowser/taskcluster-bootstrap:image-builder@sha256:" +
				"0a7d012ce444d62ffb9e7f06f0c52fedc24b68c2060711b313263367f7272d9d",
		},
		Taskcluster: TaskclusterConfig{
			Timeout: 30 * time.Second,
		},
		Serve: ServeConfig{
			Listen: "127.0.0.1:8080",
			DBPath: "./data/tasks.db",
			Webhook: WebhookConfig{
				Path:            "/webhook/github",
				SignatureHeader: "X-Hub-Signature-256",
				MaxBodySize:     "1MB",
			},
		},
	}
}

// Source hash strategies.
const (
	SourceHashGit    = "git"
	SourceHashBlake3 = "blake3"
)
