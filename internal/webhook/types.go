package webhook

import (
	"context"

	"github.com/mozilla/appservices-decision/internal/queue"
	"github.com/mozilla/appservices-decision/internal/taskcluster"
)

// TaskStore stores the decision tasks started by deliveries. StartDecision
// stores the task and its run record together, and returns the run
// already recorded when the delivery was seen before.
type TaskStore interface {
	StartDecision(ctx context.Context, def *taskcluster.TaskDefinition, run queue.DecisionRun) (queue.DecisionRun, error)
}

// TriggerResponse is the JSON response for an accepted delivery.
type TriggerResponse struct {
	TaskID  string `json:"taskId"`
	TaskFor string `json:"taskFor"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

type repository struct {
	CloneURL string `json:"clone_url"`
	HTMLURL  string `json:"html_url"`
}

type user struct {
	Login string `json:"login"`
}

// pullRequestEvent is the subset of a pull_request delivery we read.
type pullRequestEvent struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		HTMLURL string `json:"html_url"`
		User    user   `json:"user"`
		Head    struct {
			SHA  string     `json:"sha"`
			Repo repository `json:"repo"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository repository `json:"repository"`
}

// pushEvent is the subset of a push delivery we read.
type pushEvent struct {
	Ref     string `json:"ref"`
	After   string `json:"after"`
	Deleted bool   `json:"deleted"`
	Pusher  struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"pusher"`
	Repository repository `json:"repository"`
}
