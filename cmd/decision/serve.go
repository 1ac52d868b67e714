package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/mozilla/appservices-decision/internal/api"
	"github.com/mozilla/appservices-decision/internal/config"
	"github.com/mozilla/appservices-decision/internal/lock"
	"github.com/mozilla/appservices-decision/internal/log"
	"github.com/mozilla/appservices-decision/internal/queue"
	"github.com/mozilla/appservices-decision/internal/storage"
	"github.com/mozilla/appservices-decision/internal/webhook"
)

func serveCommand() cli.Command {
	return cli.Command{
		Name:  "serve",
		Usage: "Run the local task service.",
		Flags: commonFlags(
			cli.StringFlag{Name: "listen", Usage: "override serve.listen"},
			cli.StringFlag{Name: "db", Usage: "override serve.db_path"},
		),
		Action: runServe,
	}
}

// serveLockPath is serve.lock_path when set, else the lock beside the
// task database.
func serveLockPath(s config.ServeConfig) string {
	if s.LockPath != "" {
		return s.LockPath
	}
	return lock.PathFor(s.DBPath)
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.String("listen"); v != "" {
		cfg.Serve.Listen = v
	}
	if v := c.String("db"); v != "" {
		cfg.Serve.DBPath = v
		cfg.Serve.LockPath = ""
	}
	lockPath := serveLockPath(cfg.Serve)

	logger := log.WithComponent("serve")

	pidLock, err := lock.AcquirePIDLock(lockPath)
	if err != nil {
		return fmt.Errorf("another instance may be running: %w", err)
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	ctx, cancel := signalContext(0)
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.Serve.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	store := queue.New(db)
	server := api.New(api.Config{
		Listen:   cfg.Serve.Listen,
		APIToken: cfg.Serve.APIToken,
	}, store, log.WithComponent("api"))

	if cfg.Serve.Webhook.Secret != "" {
		whConfig, err := webhook.FromConfig(cfg.Serve.Webhook)
		if err != nil {
			return err
		}
		server.Mount(whConfig.Path, webhook.New(whConfig, cfg, store, log.WithComponent("webhook")))
		logger.Info("webhook enabled", "path", whConfig.Path)
	} else {
		logger.Warn("webhook disabled: serve.webhook.secret is not set")
	}

	logger.Info("local task service running (press Ctrl+C to stop)", "db", cfg.Serve.DBPath)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("local task service stopped")
	return nil
}
