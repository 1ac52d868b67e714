package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mozilla/appservices-decision/internal/queue"
	"github.com/mozilla/appservices-decision/internal/taskcluster"
)

// maxTaskBody caps createTask request bodies.
const maxTaskBody = 1 << 20

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleCreateTask handles PUT /api/queue/v1/task/{taskID}.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var def taskcluster.TaskDefinition
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTaskBody))
	if err := dec.Decode(&def); err != nil {
		s.writeError(w, http.StatusBadRequest, "InputValidationError", "invalid JSON body")
		return
	}
	if err := validateDefinition(&def); err != nil {
		s.writeError(w, http.StatusBadRequest, "InputValidationError", err.Error())
		return
	}

	status, err := s.store.CreateTask(r.Context(), taskID, &def)
	switch {
	case errors.Is(err, queue.ErrConflict):
		s.writeError(w, http.StatusConflict, "RequestConflict", err.Error())
		return
	case err != nil:
		s.logger.Error("failed to create task", "task_id", taskID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "InternalServerError", "failed to create task")
		return
	}

	s.logger.Info("task created", "task_id", taskID, "task_group_id", def.TaskGroupID, "name", def.Metadata.Name)
	s.writeJSON(w, http.StatusOK, status)
}

// handleGetTask handles GET /api/queue/v1/task/{taskID}.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	def, err := s.store.Task(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, def)
}

// handleListTaskGroup handles GET /api/queue/v1/task-group/{taskGroupID}/list.
func (s *Server) handleListTaskGroup(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListTaskGroup(r.Context(), chi.URLParam(r, "taskGroupID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// handleFindTask handles GET /api/index/v1/task/{namespace}.
func (s *Server) handleFindTask(w http.ResponseWriter, r *http.Request) {
	found, err := s.store.FindTask(r.Context(), chi.URLParam(r, "namespace"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, found)
}

// handleListDecisions handles GET /api/decisions?limit=N.
func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "InputValidationError", "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListDecisions(r.Context(), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if runs == nil {
		runs = []queue.DecisionRun{}
	}
	s.writeJSON(w, http.StatusOK, DecisionsResponse{Decisions: runs})
}

// handleOpenAPI handles GET /openapi.json.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, buildOpenAPIDoc(s.config.APIToken != "", slices.Sorted(maps.Keys(s.mounts))))
}

// validateDefinition checks the fields the queue relies on.
func validateDefinition(def *taskcluster.TaskDefinition) error {
	switch {
	case def.TaskGroupID == "":
		return errors.New("taskGroupId is required")
	case def.ProvisionerID == "" || def.WorkerType == "":
		return errors.New("provisionerId and workerType are required")
	case def.Metadata.Name == "":
		return errors.New("metadata.name is required")
	case len(def.Payload) == 0 || string(def.Payload) == "null":
		return errors.New("payload is required")
	}
	for field, value := range map[string]string{
		"created":  def.Created,
		"deadline": def.Deadline,
		"expires":  def.Expires,
	} {
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fmt.Errorf("%s must be an RFC 3339 date", field)
		}
	}
	return nil
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if taskcluster.IsNotFound(err) {
		s.writeError(w, http.StatusNotFound, "ResourceNotFound", err.Error())
		return
	}
	s.logger.Error("store request failed", "error", err)
	s.writeError(w, http.StatusInternalServerError, "InternalServerError", "internal error")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the error envelope the task service clients parse.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, taskcluster.ErrorBody{Code: code, Message: message})
}
