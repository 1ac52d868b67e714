// Package taskcluster is a small client for the Queue and Index services
// the decision task submits to.
//
// Only the calls the decision task needs are implemented. Requests are
// unauthenticated: inside a decision task they go through the
// taskcluster proxy, which signs them with the task's own scopes, and
// during development they go to the local task service.
package taskcluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mozilla/appservices-decision/internal/log"
)

const (
	queuePath = "/api/queue/v1"
	indexPath = "/api/index/v1"

	// maxErrorBody caps how much of an error response is read for the message.
	maxErrorBody = 64 * 1024
)

// Client talks to a Queue and Index rooted at a single URL.
type Client struct {
	rootURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for rootURL. A nil httpClient gets a client
// with the given timeout.
func NewClient(rootURL string, httpClient *http.Client, timeout time.Duration) (*Client, error) {
	if rootURL == "" {
		return nil, fmt.Errorf("taskcluster root URL is empty")
	}
	u, err := url.Parse(rootURL)
	if err != nil {
		return nil, fmt.Errorf("parse root URL %q: %w", rootURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("root URL %q must be http or https", rootURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		rootURL: strings.TrimRight(rootURL, "/"),
		http:    httpClient,
		logger:  log.WithComponent("taskcluster"),
	}, nil
}

// RootURL returns the service root this client targets.
func (c *Client) RootURL() string { return c.rootURL }

// CreateTask submits def under taskID.
func (c *Client) CreateTask(ctx context.Context, taskID string, def *TaskDefinition) (*TaskStatus, error) {
	var status TaskStatus
	if err := c.do(ctx, http.MethodPut, queuePath+"/task/"+url.PathEscape(taskID), def, &status); err != nil {
		return nil, fmt.Errorf("create task %s: %w", taskID, err)
	}
	return &status, nil
}

// FindTask looks up the task indexed under namespace. A missing entry is
// an *APIError with StatusCode 404; see IsNotFound.
func (c *Client) FindTask(ctx context.Context, namespace string) (*IndexedTask, error) {
	var found IndexedTask
	if err := c.do(ctx, http.MethodGet, indexPath+"/task/"+url.PathEscape(namespace), nil, &found); err != nil {
		return nil, fmt.Errorf("find task %s: %w", namespace, err)
	}
	return &found, nil
}

// ListTaskGroup lists the tasks created in taskGroupID.
func (c *Client) ListTaskGroup(ctx context.Context, taskGroupID string) (*TaskGroupList, error) {
	var list TaskGroupList
	if err := c.do(ctx, http.MethodGet, queuePath+"/task-group/"+url.PathEscape(taskGroupID)+"/list", nil, &list); err != nil {
		return nil, fmt.Errorf("list task group %s: %w", taskGroupID, err)
	}
	return &list, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	endpoint := c.rootURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("task service request",
		"method", method,
		"url", endpoint,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, URL: endpoint}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var eb ErrorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
			apiErr.Message = eb.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
