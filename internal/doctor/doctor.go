// Package doctor checks a decision task configuration and the repository
// checkout it points at.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	units "github.com/docker/go-units"

	"github.com/mozilla/appservices-decision/internal/config"
	"github.com/mozilla/appservices-decision/internal/decision"
	"github.com/mozilla/appservices-decision/internal/pipeline"
	"github.com/mozilla/appservices-decision/internal/srchash"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a configuration against the checkout it describes.
type Doctor struct {
	cfg    *config.Config
	hasher srchash.Hasher
}

// New creates a Doctor from a read (not necessarily valid) config. A nil
// hasher means the one selected by cfg.SourceHash.
func New(cfg *config.Config, hasher srchash.Hasher) *Doctor {
	return &Doctor{cfg: cfg, hasher: hasher}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateConfig(r)
	d.validateDockerfile(r)
	d.validateSources(ctx, r)
	d.warnDecisionEnv(r)
	d.warnServe(r)
	d.warnUnresolvedEnvVars(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateConfig reports each problem config.Validate finds as its own issue.
func (d *Doctor) validateConfig(r *Result) {
	err := config.Validate(d.cfg)
	if err == nil {
		return
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		d.addError(r, "config", "", err.Error())
		return
	}
	for _, e := range joined.Unwrap() {
		msg := e.Error()
		field, _, found := strings.Cut(msg, ":")
		if !found || strings.ContainsAny(field, " ") {
			field = ""
		}
		d.addError(r, "config", field, msg)
	}
}

func (d *Doctor) validateDockerfile(r *Result) {
	path := pipeline.SettingsFromConfig(d.cfg).Dockerfile
	if _, err := decision.ExpandDockerfile(path); err != nil {
		d.addError(r, "docker", "docker_dir", err.Error())
	}
}

func (d *Doctor) validateSources(ctx context.Context, r *Result) {
	libs := filepath.Join(d.cfg.RepoRoot, pipeline.LibsDir)
	if info, err := os.Stat(libs); err != nil || !info.IsDir() {
		d.addError(r, "source", "repo_root", fmt.Sprintf("%s is not a directory", libs))
		return
	}

	hasher := d.hasher
	if hasher == nil {
		h, err := srchash.New(d.cfg)
		if err != nil {
			// already reported by validateConfig
			return
		}
		hasher = h
	}
	if _, err := hasher.HashDir(ctx, pipeline.LibsDir); err != nil {
		msg := err.Error()
		if d.cfg.SourceHash == config.SourceHashGit {
			msg += " (set source_hash: blake3 outside a git checkout)"
		}
		d.addError(r, "source", "source_hash", msg)
	}
}

// warnDecisionEnv flags what only `run` needs; plan and serve work without it.
func (d *Doctor) warnDecisionEnv(r *Result) {
	if err := config.ValidateSubmission(d.cfg); err != nil {
		d.addWarning(r, "environment", "decision", err.Error())
	}
}

func (d *Doctor) warnServe(r *Result) {
	s := d.cfg.Serve
	if s.Webhook.Secret == "" {
		d.addWarning(r, "serve", "serve.webhook.secret", "not set; serve will not accept GitHub webhooks")
	}
	if s.APIToken == "" && !isLoopback(s.Listen) {
		d.addWarning(r, "serve", "serve.api_token",
			fmt.Sprintf("task creation is unauthenticated on non-loopback address %q", s.Listen))
	}
	if s.Webhook.MaxBodySize != "" {
		if n, err := units.RAMInBytes(s.Webhook.MaxBodySize); err == nil && n < 64*1024 {
			d.addWarning(r, "serve", "serve.webhook.max_body_size",
				fmt.Sprintf("%s is smaller than typical GitHub push payloads", units.BytesSize(float64(n))))
		}
	}
}

// warnUnresolvedEnvVars warns about ${VAR} references that survived interpolation.
func (d *Doctor) warnUnresolvedEnvVars(r *Result) {
	for field, value := range map[string]string{
		"serve.api_token":      d.cfg.Serve.APIToken,
		"taskcluster.root_url": d.cfg.Taskcluster.RootURL,
	} {
		if strings.Contains(value, "${") {
			d.addWarning(r, "env_vars", field, fmt.Sprintf("unresolved environment variable in %q", value))
		}
	}
}

func isLoopback(listen string) bool {
	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
