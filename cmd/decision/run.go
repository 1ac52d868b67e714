package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli"

	"github.com/mozilla/appservices-decision/internal/config"
	"github.com/mozilla/appservices-decision/internal/decision"
	"github.com/mozilla/appservices-decision/internal/log"
	"github.com/mozilla/appservices-decision/internal/pipeline"
	"github.com/mozilla/appservices-decision/internal/queue"
	"github.com/mozilla/appservices-decision/internal/srchash"
	"github.com/mozilla/appservices-decision/internal/storage"
	"github.com/mozilla/appservices-decision/internal/taskcluster"
)

const defaultTimeout = 5 * time.Minute

func taskForFlag() cli.Flag {
	return cli.StringFlag{
		Name:   "task-for",
		Usage:  "trigger kind: github-pull-request or github-push",
		EnvVar: "TASK_FOR",
	}
}

func runCommand() cli.Command {
	return cli.Command{
		Name:  "run",
		Usage: "Submit the task graph for one trigger.",
		Flags: commonFlags(
			taskForFlag(),
			cli.BoolFlag{
				Name:  "dry-run",
				Usage: "submit to an in-memory task service instead of Taskcluster",
			},
			cli.DurationFlag{
				Name:  "timeout",
				Usage: "bound on the whole run",
				Value: defaultTimeout,
			},
		),
		Action: runDecision,
	}
}

func planCommand() cli.Command {
	return cli.Command{
		Name:  "plan",
		Usage: "Build the task graph against an in-memory task service and print it.",
		Flags: commonFlags(
			taskForFlag(),
			cli.StringFlag{
				Name:  "git-ref",
				Usage: "ref to plan for when GIT_REF is not set",
				Value: "refs/heads/main",
			},
			cli.StringFlag{
				Name:  "format, f",
				Usage: "output format: text, json or yaml",
				Value: "text",
			},
		),
		Action: runPlan,
	}
}

func runDecision(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c.Duration("timeout"))
	defer cancel()

	var submitter decision.Submitter
	var client *taskcluster.Client
	if c.Bool("dry-run") {
		fillPlanEnv(cfg)
		store, closeStore, err := memoryStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		submitter = store
	} else {
		if err := config.ValidateSubmission(cfg); err != nil {
			return err
		}
		client, err = taskcluster.NewClient(cfg.Taskcluster.RootURL, nil, cfg.Taskcluster.Timeout)
		if err != nil {
			return err
		}
		submitter = client
	}

	trig, err := triggerFrom(c, cfg)
	if err != nil {
		return err
	}
	plan, err := dispatch(ctx, cfg, submitter, trig)
	if plan != nil {
		fmt.Fprint(c.App.Writer, renderSummary(plan))
	}
	if err != nil || client == nil {
		return err
	}
	printTaskGroup(ctx, c, client, cfg.Decision.TaskID)
	return nil
}

// printTaskGroup lists what the task service holds for the decision's
// group. The graph is already submitted, so a failed listing only warns.
func printTaskGroup(ctx context.Context, c *cli.Context, client *taskcluster.Client, groupID string) {
	list, err := client.ListTaskGroup(ctx, groupID)
	if taskcluster.IsNotFound(err) {
		list, err = &taskcluster.TaskGroupList{TaskGroupID: groupID}, nil
	}
	if err != nil {
		log.Warn("list task group", "task_group_id", groupID, "error", err)
		return
	}
	fmt.Fprint(c.App.Writer, renderTaskGroup(client.RootURL(), list))
}

func runPlan(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Decision.GitRef == "" {
		cfg.Decision.GitRef = c.String("git-ref")
	}
	fillPlanEnv(cfg)
	trig, err := triggerFrom(c, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(defaultTimeout)
	defer cancel()

	store, closeStore, err := memoryStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	plan, err := dispatch(ctx, cfg, store, trig)
	if err != nil {
		return err
	}

	out, err := renderPlan(plan, c.String("format"))
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, out)
	return nil
}

func triggerFrom(c *cli.Context, cfg *config.Config) (pipeline.Trigger, error) {
	taskFor := c.String("task-for")
	if taskFor == "" {
		return pipeline.Trigger{}, errors.New("--task-for (or TASK_FOR) is required")
	}
	return pipeline.Trigger{TaskFor: pipeline.TaskFor(taskFor), GitRef: cfg.Decision.GitRef}, nil
}

func dispatch(ctx context.Context, cfg *config.Config, submitter decision.Submitter, trig pipeline.Trigger) (*pipeline.Plan, error) {
	hasher, err := srchash.New(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, submitter, hasher).Run(ctx, trig)
}

// fillPlanEnv supplies placeholders for the decision environment that a
// local run lacks. Values already set are kept.
func fillPlanEnv(cfg *config.Config) {
	d := &cfg.Decision
	if d.TaskID == "" {
		d.TaskID = taskcluster.SlugID()
	}
	if d.Owner == "" {
		d.Owner = "decision-plan@localhost"
	}
	if d.GitURL == "" {
		if root, err := filepath.Abs(cfg.RepoRoot); err == nil {
			d.GitURL = "file://" + root
		} else {
			d.GitURL = "file://" + cfg.RepoRoot
		}
	}
	if d.Source == "" {
		d.Source = d.GitURL
	}
	if d.GitRef == "" {
		d.GitRef = "refs/heads/main"
	}
	if d.GitSHA == "" {
		d.GitSHA = "HEAD"
	}
}

// memoryStore opens a throwaway local task service.
func memoryStore(ctx context.Context) (*queue.Store, func(), error) {
	db, err := storage.OpenSQLite(ctx, ":memory:")
	if err != nil {
		return nil, nil, fmt.Errorf("open in-memory task store: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			log.Warn("close in-memory task store", "error", err)
		}
	}
	return queue.New(db), closeDB, nil
}
