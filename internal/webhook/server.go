package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mozilla/appservices-decision/internal/config"
	"github.com/mozilla/appservices-decision/internal/decision"
	"github.com/mozilla/appservices-decision/internal/queue"
	"github.com/mozilla/appservices-decision/internal/taskcluster"
)

// TASK_FOR values, as understood by the decision run.
const (
	taskForPullRequest = "github-pull-request"
	taskForPush        = "github-push"
)

const noreplyDomain = "users.noreply.github.com"

// errIgnored marks deliveries that start nothing.
var errIgnored = errors.New("event ignored")

// Handler receives GitHub deliveries and stores a decision task for each
// relevant one.
type Handler struct {
	config Config
	cfg    *config.Config
	store  TaskStore
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
}

// New creates a Handler. cfg supplies the scheduler, worker and expiry
// settings of the decision tasks.
func New(config Config, cfg *config.Config, store TaskStore, logger *slog.Logger) *Handler {
	return &Handler{
		config: config,
		cfg:    cfg,
		store:  store,
		logger: logger,
		newID:  taskcluster.SlugID,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// trigger is what a delivery asks to build.
type trigger struct {
	taskFor string
	owner   string
	source  string
	gitURL  string
	gitRef  string
	gitSHA  string
}

// ServeHTTP handles POST deliveries.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.config.MaxBodySize+1))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > h.config.MaxBodySize {
		h.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	signature := r.Header.Get(h.config.SignatureHeader)
	if err := verifyHMACSignature(body, signature, h.config.Secret); err != nil {
		h.logger.Warn("webhook signature verification failed",
			"path", r.URL.Path,
			"header", h.config.SignatureHeader,
			"present", signature != "",
		)
		h.respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	delivery := r.Header.Get("X-GitHub-Delivery")
	trig, err := parseEvent(event, body)
	switch {
	case errors.Is(err, errIgnored):
		h.logger.Info("webhook event ignored", "event", event, "delivery", delivery)
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		h.logger.Warn("webhook payload rejected", "event", event, "delivery", delivery, "error", err)
		h.respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	taskID, err := h.startDecision(r.Context(), event, delivery, trig)
	if err != nil {
		h.logger.Error("failed to create decision task", "event", event, "delivery", delivery, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create decision task")
		return
	}

	h.logger.Info("decision task created",
		"task_id", taskID,
		"task_for", trig.taskFor,
		"git_ref", trig.gitRef,
		"git_sha", trig.gitSHA,
		"delivery", delivery,
	)
	h.respondJSON(w, http.StatusAccepted, TriggerResponse{TaskID: taskID, TaskFor: trig.taskFor})
}

// startDecision stores the decision task of trig and the run record.
func (h *Handler) startDecision(ctx context.Context, event, delivery string, trig trigger) (string, error) {
	taskID := h.newID()

	cfg := *h.cfg
	cfg.Decision = config.DecisionEnv{
		TaskID: taskID,
		Owner:  trig.owner,
		Source: trig.source,
		GitURL: trig.gitURL,
		GitRef: trig.gitRef,
		GitSHA: trig.gitSHA,
	}
	session := decision.NewSession(&cfg, nil, decision.WithClock(h.now()))
	def, err := session.RootDefinition(decisionTask(trig.taskFor))
	if err != nil {
		return "", err
	}

	run, err := h.store.StartDecision(ctx, def, queue.DecisionRun{
		TaskID:     taskID,
		TaskFor:    trig.taskFor,
		Event:      event,
		DeliveryID: delivery,
		GitURL:     trig.gitURL,
		GitRef:     trig.gitRef,
		GitSHA:     trig.gitSHA,
		CreatedAt:  h.now(),
	})
	if err != nil {
		return "", err
	}
	return run.TaskID, nil
}

// decisionTask runs the decision binary in a checkout of the commit.
func decisionTask(taskFor string) decision.Task {
	return decision.NewTask("Decision task").
		WithDescription("Schedules the build tasks of " + taskFor).
		WithEnv(map[string]string{"TASK_FOR": taskFor}).
		WithFeatures("taskclusterProxy").
		WithScopes("queue:create-task:*", "queue:route:index.*").
		WithScript("decision run").
		WithRepo()
}

// parseEvent maps a delivery to a trigger, or errIgnored.
func parseEvent(event string, body []byte) (trigger, error) {
	switch event {
	case "pull_request":
		var ev pullRequestEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return trigger{}, fmt.Errorf("decode pull_request: %w", err)
		}
		switch ev.Action {
		case "opened", "synchronize", "reopened":
		default:
			return trigger{}, errIgnored
		}
		pr := ev.PullRequest
		if ev.Number <= 0 || pr.Head.SHA == "" || pr.Head.Repo.CloneURL == "" {
			return trigger{}, errors.New("pull_request: missing number, head sha or head repository")
		}
		return trigger{
			taskFor: taskForPullRequest,
			owner:   noreplyAddress(pr.User.Login),
			source:  orFallback(pr.HTMLURL, ev.Repository.HTMLURL),
			gitURL:  pr.Head.Repo.CloneURL,
			gitRef:  fmt.Sprintf("refs/pull/%d/head", ev.Number),
			gitSHA:  pr.Head.SHA,
		}, nil

	case "push":
		var ev pushEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return trigger{}, fmt.Errorf("decode push: %w", err)
		}
		if ev.Deleted {
			return trigger{}, errIgnored
		}
		if ev.Ref == "" || ev.After == "" || ev.Repository.CloneURL == "" {
			return trigger{}, errors.New("push: missing ref, after or repository")
		}
		owner := ev.Pusher.Email
		if owner == "" {
			owner = noreplyAddress(ev.Pusher.Name)
		}
		return trigger{
			taskFor: taskForPush,
			owner:   owner,
			source:  orFallback(ev.Repository.HTMLURL, ev.Repository.CloneURL),
			gitURL:  ev.Repository.CloneURL,
			gitRef:  ev.Ref,
			gitSHA:  ev.After,
		}, nil

	default:
		return trigger{}, errIgnored
	}
}

func noreplyAddress(login string) string {
	if login == "" {
		login = "nobody"
	}
	return login + "@" + noreplyDomain
}

func orFallback(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message})
}
