package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla/appservices-decision/internal/config"
	"github.com/mozilla/appservices-decision/internal/queue"
	"github.com/mozilla/appservices-decision/internal/storage"
	"github.com/mozilla/appservices-decision/internal/taskcluster"
)

const secret = "test-secret"

type fakeStore struct {
	created   map[string]*taskcluster.TaskDefinition
	runs      []queue.DecisionRun
	createErr error
}

func (f *fakeStore) StartDecision(_ context.Context, def *taskcluster.TaskDefinition, run queue.DecisionRun) (queue.DecisionRun, error) {
	if f.createErr != nil {
		return queue.DecisionRun{}, f.createErr
	}
	if f.created == nil {
		f.created = map[string]*taskcluster.TaskDefinition{}
	}
	f.created[run.TaskID] = def
	f.runs = append(f.runs, run)
	return run, nil
}

func newHandler(t *testing.T, store TaskStore) *Handler {
	t.Helper()
	wc := config.Defaults().Serve.Webhook
	wc.Secret = secret
	wc.MaxBodySize = "4KB"
	cfg, err := FromConfig(wc)
	require.NoError(t, err)

	h := New(cfg, config.Defaults(), store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.newID = func() string { return "decision-1" }
	h.now = func() time.Time { return time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC) }
	return h
}

func deliver(h http.Handler, event string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const pullRequestBody = `{
  "action": "synchronize",
  "number": 42,
  "pull_request": {
    "html_url": "https://github.com/mozilla/application-services/pull/42",
    "user": {"login": "octocat"},
    "head": {"sha": "deadbeef", "repo": {"clone_url": "https://github.com/octocat/application-services.git"}}
  },
  "repository": {"clone_url": "https://github.com/mozilla/application-services.git", "html_url": "https://github.com/mozilla/application-services"}
}`

const pushBody = `{
  "ref": "refs/tags/v0.10.0",
  "after": "cafebabe",
  "deleted": false,
  "pusher": {"name": "releaser", "email": "releaser@example.com"},
  "repository": {"clone_url": "https://github.com/mozilla/application-services.git", "html_url": "https://github.com/mozilla/application-services"}
}`

func TestPullRequestStartsDecisionTask(t *testing.T) {
	store := &fakeStore{}
	h := newHandler(t, store)

	body := []byte(pullRequestBody)
	rec := deliver(h, "pull_request", body, Sign(body, secret))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp TriggerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "decision-1", resp.TaskID)
	assert.Equal(t, "github-pull-request", resp.TaskFor)

	def := store.created["decision-1"]
	require.NotNil(t, def)
	assert.Equal(t, "decision-1", def.TaskGroupID)
	assert.Empty(t, def.Dependencies)
	assert.Equal(t, "octocat@users.noreply.github.com", def.Metadata.Owner)
	assert.Equal(t, "https://github.com/mozilla/application-services/pull/42", def.Metadata.Source)
	assert.Equal(t, "2026-06-01T08:00:00.000Z", def.Created)

	var payload struct {
		Env      map[string]string `json:"env"`
		Features map[string]bool   `json:"features"`
	}
	require.NoError(t, json.Unmarshal(def.Payload, &payload))
	assert.Equal(t, map[string]string{
		"TASK_FOR": "github-pull-request",
		"GIT_URL":  "https://github.com/octocat/application-services.git",
		"GIT_REF":  "refs/pull/42/head",
		"GIT_SHA":  "deadbeef",
	}, payload.Env)
	assert.True(t, payload.Features["taskclusterProxy"])

	require.Len(t, store.runs, 1)
	assert.Equal(t, queue.DecisionRun{
		TaskID:     "decision-1",
		TaskFor:    "github-pull-request",
		Event:      "pull_request",
		DeliveryID: "delivery-1",
		GitURL:     "https://github.com/octocat/application-services.git",
		GitRef:     "refs/pull/42/head",
		GitSHA:     "deadbeef",
		CreatedAt:  time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}, store.runs[0])
}

func TestPushStartsDecisionTask(t *testing.T) {
	store := &fakeStore{}
	h := newHandler(t, store)

	body := []byte(pushBody)
	rec := deliver(h, "push", body, Sign(body, secret))
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, "github-push", run.TaskFor)
	assert.Equal(t, "refs/tags/v0.10.0", run.GitRef)
	assert.Equal(t, "cafebabe", run.GitSHA)
	assert.Equal(t, "releaser@example.com", store.created["decision-1"].Metadata.Owner)
}

func TestIgnoredEvents(t *testing.T) {
	cases := map[string]string{
		"ping":         `{"zen":"Keep it logically awesome."}`,
		"issues":       `{"action":"opened"}`,
		"pull_request": strings.Replace(pullRequestBody, `"synchronize"`, `"closed"`, 1),
		"push":         `{"ref":"refs/heads/gone","after":"0000","deleted":true,"repository":{"clone_url":"x"}}`,
	}
	for event, raw := range cases {
		t.Run(event, func(t *testing.T) {
			store := &fakeStore{}
			body := []byte(raw)
			rec := deliver(newHandler(t, store), event, body, Sign(body, secret))
			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Empty(t, store.created)
			assert.Empty(t, store.runs)
		})
	}
}

func TestRejectsBadSignature(t *testing.T) {
	store := &fakeStore{}
	h := newHandler(t, store)
	body := []byte(pushBody)

	assert.Equal(t, http.StatusForbidden, deliver(h, "push", body, "").Code)
	assert.Equal(t, http.StatusForbidden, deliver(h, "push", body, Sign(body, "wrong")).Code)
	assert.Empty(t, store.created)
}

func TestRejectsOversizedBody(t *testing.T) {
	h := newHandler(t, &fakeStore{})
	body := bytes.Repeat([]byte("a"), 5*1024)
	assert.Equal(t, http.StatusRequestEntityTooLarge, deliver(h, "push", body, Sign(body, secret)).Code)
}

func TestRejectsMalformedPayload(t *testing.T) {
	h := newHandler(t, &fakeStore{})

	for event, raw := range map[string]string{
		"push":         `{"ref":"refs/heads/main"}`,
		"pull_request": `{"action":"opened","number":1}`,
	} {
		body := []byte(raw)
		assert.Equal(t, http.StatusBadRequest, deliver(h, event, body, Sign(body, secret)).Code, event)
	}

	body := []byte(`not json`)
	assert.Equal(t, http.StatusBadRequest, deliver(h, "push", body, Sign(body, secret)).Code)
}

func TestStoreFailure(t *testing.T) {
	h := newHandler(t, &fakeStore{createErr: errors.New("disk full")})
	body := []byte(pushBody)
	rec := deliver(h, "push", body, Sign(body, secret))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRedeliveryReusesDecisionTask(t *testing.T) {
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := queue.New(db)

	h := newHandler(t, store)
	n := 0
	h.newID = func() string {
		n++
		return fmt.Sprintf("decision-%d", n)
	}

	body := []byte(pushBody)
	for i := 0; i < 2; i++ {
		rec := deliver(h, "push", body, Sign(body, secret))
		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp TriggerResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "decision-1", resp.TaskID)
	}

	runs, err := store.ListDecisions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "delivery-1", runs[0].DeliveryID)
	_, err = store.Task(context.Background(), "decision-2")
	assert.True(t, taskcluster.IsNotFound(err))
}
