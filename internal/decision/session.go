package decision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/mozilla/appservices-decision/internal/config"
	"github.com/mozilla/appservices-decision/internal/log"
	"github.com/mozilla/appservices-decision/internal/taskcluster"
)

//go:generate mockgen -destination=mocks/mock_submitter.go -package=mocks github.com/mozilla/appservices-decision/internal/decision Submitter

// Submitter is the part of the task service a decision run talks to.
type Submitter interface {
	CreateTask(ctx context.Context, taskID string, def *taskcluster.TaskDefinition) (*taskcluster.TaskStatus, error)
	FindTask(ctx context.Context, namespace string) (*taskcluster.IndexedTask, error)
}

// Submission records one task handled during a run.
type Submission struct {
	Name      string `json:"name"`
	TaskID    string `json:"taskId"`
	IndexPath string `json:"indexPath,omitempty"`
	// Reused is true when the task was found in the index or earlier in
	// this run rather than created.
	Reused     bool                        `json:"reused"`
	Definition *taskcluster.TaskDefinition `json:"definition,omitempty"`
}

// Session is the state of one decision run: configuration, the instant
// all relative times are computed from, the task service, and the tasks
// found or created so far.
type Session struct {
	cfg       *config.Config
	submitter Submitter
	now       time.Time
	newID     func() string
	logger    *slog.Logger

	indexed     map[string]string
	submissions []Submission
}

// Option customizes a Session.
type Option func(*Session)

// WithClock fixes the session's reference time.
func WithClock(now time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator replaces the slug ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

// NewSession starts a decision run against submitter.
func NewSession(cfg *config.Config, submitter Submitter, opts ...Option) *Session {
	s := &Session{
		cfg:       cfg,
		submitter: submitter,
		now:       time.Now().UTC(),
		newID:     taskcluster.SlugID,
		logger:    log.WithComponent("decision"),
		indexed:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the reference time of the session.
func (s *Session) Now() time.Time { return s.now }

// Submissions returns what the session has handled, in order.
func (s *Session) Submissions() []Submission {
	return slices.Clone(s.submissions)
}

// Create submits t unconditionally and returns its new task ID.
func (s *Session) Create(ctx context.Context, t Task) (string, error) {
	t, err := s.resolveImage(ctx, t)
	if err != nil {
		return "", err
	}
	return s.create(ctx, t, "")
}

// FindOrCreate returns the task indexed under indexPath (prefixed with the
// configured index prefix), creating and indexing t when there is none.
// An empty indexPath indexes t by a hash of its definition. Within a
// session each index path is resolved at most once.
func (s *Session) FindOrCreate(ctx context.Context, t Task, indexPath string) (string, error) {
	if indexPath == "" {
		resolved, err := s.resolveImage(ctx, t)
		if err != nil {
			return "", err
		}
		key, err := s.definitionKey(resolved)
		if err != nil {
			return "", err
		}
		t = resolved
		indexPath = "by-task-definition." + key
	}
	indexPath = s.cfg.IndexPrefix + "." + indexPath

	if taskID, ok := s.indexed[indexPath]; ok {
		s.record(Submission{Name: t.Name, TaskID: taskID, IndexPath: indexPath, Reused: true})
		return taskID, nil
	}

	found, err := s.submitter.FindTask(ctx, indexPath)
	switch {
	case err == nil:
		s.logger.Info("found indexed task", "task", t.Name, "task_id", found.TaskID, "index", indexPath)
		s.indexed[indexPath] = found.TaskID
		s.record(Submission{Name: t.Name, TaskID: found.TaskID, IndexPath: indexPath, Reused: true})
		return found.TaskID, nil
	case !taskcluster.IsNotFound(err):
		return "", fmt.Errorf("find or create %q: %w", t.Name, err)
	}

	t, err = s.resolveImage(ctx, t)
	if err != nil {
		return "", err
	}
	taskID, err := s.create(ctx, t.WithRoutes("index."+indexPath), indexPath)
	if err != nil {
		return "", err
	}
	s.indexed[indexPath] = taskID
	return taskID, nil
}

// resolveImage builds (or finds) the image of a dockerfile task and points
// t at it.
func (s *Session) resolveImage(ctx context.Context, t Task) (Task, error) {
	if t.Dockerfile == "" {
		return t, nil
	}

	name, err := dockerImageName(t.Dockerfile)
	if err != nil {
		return t, err
	}
	contents, err := ExpandDockerfile(t.Dockerfile)
	if err != nil {
		return t, err
	}
	sum := sha256.Sum256(contents)
	digest := hex.EncodeToString(sum[:])

	workerType := s.cfg.DockerImageBuildWorkerType
	if workerType == "" {
		workerType = s.workerType(t)
	}

	imageTask := NewTask("Docker image: "+name).
		WithWorkerType(workerType).
		WithMaxRunTimeMinutes(30).
		WithIndexAndArtifactsExpireIn(s.cfg.Expiry.DockerImages).
		WithFeatures("dind").
		WithEnv(map[string]string{"DOCKERFILE": string(contents)}).
		WithArtifacts("/image.tar.lz4").
		WithScript(`
			echo "$DOCKERFILE" | docker build -t taskcluster-built -
			docker save taskcluster-built | lz4 > /image.tar.lz4
		`).
		WithDockerImage(s.cfg.Build.ImageBuilderImage)

	imageTaskID, err := s.FindOrCreate(ctx, imageTask, "docker-image."+digest)
	if err != nil {
		return t, fmt.Errorf("docker image %s: %w", name, err)
	}

	t = t.WithDependencies(imageTaskID)
	t.Image = Image{TaskID: imageTaskID, Path: "public/image.tar.lz4"}
	t.Dockerfile = ""
	return t, nil
}

func (s *Session) create(ctx context.Context, t Task, indexPath string) (string, error) {
	def, err := s.Definition(t)
	if err != nil {
		return "", fmt.Errorf("task %q: %w", t.Name, err)
	}

	taskID := s.newID()
	if _, err := s.submitter.CreateTask(ctx, taskID, def); err != nil {
		return "", fmt.Errorf("task %q: %w", t.Name, err)
	}

	log.WithTask(t.Name, taskID).Info("task scheduled", "index", indexPath)
	s.record(Submission{Name: t.Name, TaskID: taskID, IndexPath: indexPath, Definition: def})
	return taskID, nil
}

func (s *Session) record(sub Submission) {
	s.submissions = append(s.submissions, sub)
}

// Definition renders the full createTask body for t at the session time.
// The task joins the decision task's group and depends on it. t must not
// carry an unresolved Dockerfile.
func (s *Session) Definition(t Task) (*taskcluster.TaskDefinition, error) {
	return s.definition(t, true)
}

// RootDefinition renders t as the decision task itself: the head of its
// own task group, with no implicit dependency.
func (s *Session) RootDefinition(t Task) (*taskcluster.TaskDefinition, error) {
	return s.definition(t, false)
}

func (s *Session) definition(t Task, subtask bool) (*taskcluster.TaskDefinition, error) {
	if t.Dockerfile != "" {
		return nil, fmt.Errorf("dockerfile %s not resolved", t.Dockerfile)
	}
	d := s.cfg.Decision
	switch {
	case d.TaskID == "":
		return nil, missingEnv("TASK_ID")
	case d.Owner == "":
		return nil, missingEnv("TASK_OWNER")
	case d.Source == "":
		return nil, missingEnv("TASK_SOURCE")
	}

	deadline, err := s.fromNow(orDefault(t.DeadlineIn, s.cfg.DeadlineIn))
	if err != nil {
		return nil, fmt.Errorf("deadline: %w", err)
	}
	expiresIn := orDefault(t.ExpiresIn, s.cfg.ExpiresIn)
	expires, err := s.fromNow(expiresIn)
	if err != nil {
		return nil, fmt.Errorf("expires: %w", err)
	}
	artifactsExpire, err := s.fromNow(orDefault(t.IndexAndArtifactsExpireIn, expiresIn))
	if err != nil {
		return nil, fmt.Errorf("artifact expiry: %w", err)
	}

	env, err := s.taskEnv(t)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(t.buildWorkerPayload(env, artifactsExpire))
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	def := &taskcluster.TaskDefinition{
		TaskGroupID:   d.TaskID,
		Dependencies:  slices.Clone(t.Dependencies),
		SchedulerID:   orDefault(t.SchedulerID, s.cfg.SchedulerID),
		ProvisionerID: orDefault(t.ProvisionerID, s.cfg.ProvisionerID),
		WorkerType:    s.workerType(t),
		Created:       taskcluster.StringDate(s.now),
		Deadline:      deadline,
		Expires:       expires,
		Metadata: taskcluster.Metadata{
			Name:        fmt.Sprintf(s.cfg.TaskNameTemplate, t.Name),
			Description: t.Description,
			Owner:       d.Owner,
			Source:      d.Source,
		},
		Payload: payload,
	}
	if subtask {
		def.Dependencies = append([]string{d.TaskID}, t.Dependencies...)
	}
	if def.Dependencies == nil {
		def.Dependencies = []string{}
	}

	scopes := slices.Clone(t.Scopes)
	routes := slices.Clone(t.Routes)
	if subtask {
		scopes = append(scopes, s.cfg.ScopesForAllSubtasks...)
		routes = append(routes, s.cfg.RoutesForAllSubtasks...)
	}
	if len(scopes) > 0 {
		def.Scopes = scopes
	}
	if len(routes) > 0 {
		def.Routes = routes
	}

	extra := maps.Clone(t.Extra)
	if slices.ContainsFunc(routes, func(r string) bool { return strings.HasPrefix(r, "index.") }) {
		if extra == nil {
			extra = make(map[string]any)
		}
		index, _ := extra["index"].(map[string]any)
		index = maps.Clone(index)
		if index == nil {
			index = make(map[string]any)
		}
		index["expires"] = artifactsExpire
		extra["index"] = index
	}
	if len(extra) > 0 {
		def.Extra = extra
	}

	return def, nil
}

// definitionKey hashes what a task would do: its worker type and payload,
// with expiry offsets instead of absolute dates so that the key does not
// drift between runs.
func (s *Session) definitionKey(t Task) (string, error) {
	env, err := s.taskEnv(t)
	if err != nil {
		return "", err
	}
	expiresIn := orDefault(t.IndexAndArtifactsExpireIn, orDefault(t.ExpiresIn, s.cfg.ExpiresIn))
	data, err := json.Marshal([]any{s.workerType(t), t.buildWorkerPayload(env, expiresIn)})
	if err != nil {
		return "", fmt.Errorf("marshal task definition: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// taskEnv returns the task environment plus the checkout variables for
// tasks built WithRepo.
func (s *Session) taskEnv(t Task) (map[string]string, error) {
	if !t.Repo {
		return t.Env, nil
	}
	d := s.cfg.Decision
	for _, v := range []struct{ name, value string }{
		{"GIT_URL", d.GitURL},
		{"GIT_REF", d.GitRef},
		{"GIT_SHA", d.GitSHA},
	} {
		if v.value == "" {
			return nil, missingEnv(v.name)
		}
	}
	env := maps.Clone(t.Env)
	if env == nil {
		env = make(map[string]string, 3)
	}
	env["GIT_URL"] = d.GitURL
	env["GIT_REF"] = d.GitRef
	env["GIT_SHA"] = d.GitSHA
	return env, nil
}

func (s *Session) workerType(t Task) string {
	return orDefault(t.WorkerType, s.cfg.WorkerType)
}

func (s *Session) fromNow(offset string) (string, error) {
	at, err := taskcluster.FromNow(offset, s.now)
	if err != nil {
		return "", err
	}
	return taskcluster.StringDate(at), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
