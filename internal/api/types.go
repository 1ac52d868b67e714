package api

import (
	"context"

	"github.com/mozilla/appservices-decision/internal/queue"
	"github.com/mozilla/appservices-decision/internal/taskcluster"
)

// TaskStore is what the API serves.
type TaskStore interface {
	CreateTask(ctx context.Context, taskID string, def *taskcluster.TaskDefinition) (*taskcluster.TaskStatus, error)
	Task(ctx context.Context, taskID string) (*taskcluster.TaskDefinition, error)
	FindTask(ctx context.Context, namespace string) (*taskcluster.IndexedTask, error)
	ListTaskGroup(ctx context.Context, taskGroupID string) (*taskcluster.TaskGroupList, error)
	ListDecisions(ctx context.Context, limit int) ([]queue.DecisionRun, error)
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// DecisionsResponse is returned by GET /api/decisions.
type DecisionsResponse struct {
	Decisions []queue.DecisionRun `json:"decisions"`
}
