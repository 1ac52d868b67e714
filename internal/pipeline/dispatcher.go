package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/mozilla/appservices-decision/internal/config"
	"github.com/mozilla/appservices-decision/internal/decision"
	"github.com/mozilla/appservices-decision/internal/log"
	"github.com/mozilla/appservices-decision/internal/srchash"
)

// TaskFor names the event a decision task was started for.
type TaskFor string

const (
	TaskForPullRequest TaskFor = "github-pull-request"
	TaskForPush        TaskFor = "github-push"
)

const tagRefPrefix = "refs/tags/"

// ErrUnknownTaskFor is returned for a TASK_FOR value no graph exists for.
var ErrUnknownTaskFor = errors.New("unrecognized TASK_FOR value")

// ConfigError is a decision run that cannot start because of its inputs.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Trigger is what a decision run is asked to build.
type Trigger struct {
	TaskFor TaskFor
	GitRef  string
}

// IsRelease reports whether the trigger is a push of a tag.
func (t Trigger) IsRelease() bool {
	return t.TaskFor == TaskForPush && strings.HasPrefix(t.GitRef, tagRefPrefix)
}

// Plan is the outcome of a decision run.
type Plan struct {
	TaskFor TaskFor               `json:"taskFor"`
	GitRef  string                `json:"gitRef,omitempty"`
	Tasks   []decision.Submission `json:"tasks"`
}

// Created counts the tasks that were submitted rather than reused.
func (p *Plan) Created() int {
	n := 0
	for _, t := range p.Tasks {
		if !t.Reused {
			n++
		}
	}
	return n
}

// Dispatcher turns triggers into submitted task graphs.
type Dispatcher struct {
	cfg       *config.Config
	submitter decision.Submitter
	hasher    srchash.Hasher
	opts      []decision.Option
	logger    *slog.Logger
}

// New creates a Dispatcher. opts are applied to the session of every run.
func New(cfg *config.Config, submitter decision.Submitter, hasher srchash.Hasher, opts ...decision.Option) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		submitter: submitter,
		hasher:    hasher,
		opts:      opts,
		logger:    log.WithComponent("pipeline"),
	}
}

// Run submits the task graph of trig. On error the returned plan lists
// whatever was submitted before the failure.
func (d *Dispatcher) Run(ctx context.Context, trig Trigger) (*Plan, error) {
	final, err := finalTask(trig)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logger := d.logger.With("task_for", string(trig.TaskFor), "git_ref", trig.GitRef)
	logger.Info("decision run started")

	session := decision.NewSession(d.cfg, d.submitter, d.opts...)
	plan := &Plan{TaskFor: trig.TaskFor, GitRef: trig.GitRef}
	defer func() { plan.Tasks = session.Submissions() }()

	libsHash, err := d.hasher.HashDir(ctx, LibsDir)
	if err != nil {
		return plan, fmt.Errorf("hash %s: %w", LibsDir, err)
	}

	settings := SettingsFromConfig(d.cfg)

	androidLibs, err := session.FindOrCreate(ctx, AndroidLibs(settings), AndroidLibsNamespace+"."+libsHash)
	if err != nil {
		return plan, err
	}
	if _, err := session.FindOrCreate(ctx, DesktopLinuxLibs(settings), DesktopLinuxLibsNamespace+"."+libsHash); err != nil {
		return plan, err
	}
	if _, err := session.Create(ctx, final(settings, androidLibs)); err != nil {
		return plan, err
	}

	logger.Info("decision run finished",
		"tasks", len(session.Submissions()),
		"duration", units.HumanDuration(time.Since(start)))
	return plan, nil
}

// finalTask picks the builder of the task that consumes the Android libs.
func finalTask(trig Trigger) (func(Settings, string) decision.Task, error) {
	switch trig.TaskFor {
	case TaskForPullRequest:
		return AndroidArm32, nil
	case TaskForPush:
		if trig.IsRelease() {
			return AndroidArm32Release, nil
		}
		return AndroidArm32, nil
	default:
		return nil, &ConfigError{Field: "TASK_FOR", Value: string(trig.TaskFor), Err: ErrUnknownTaskFor}
	}
}
