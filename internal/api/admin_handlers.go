package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/8b-is/feedgate/internal/api/middleware"
	"github.com/8b-is/feedgate/internal/api/presenter"
	"github.com/8b-is/feedgate/internal/core"
	"github.com/8b-is/feedgate/internal/service"
	"github.com/8b-is/feedgate/internal/tasks"
)

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.auth.ListIdentities(r.Context(), middleware.Caller(r.Context()))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, agents, http.StatusOK)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var payload service.CreateIdentityRequest
	if err := DecodePayload(r, &payload, false); err != nil {
		s.badPayload(w, r, err)
		return
	}

	created, err := s.auth.CreateIdentity(r.Context(), middleware.Caller(r.Context()), payload)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, created, http.StatusCreated)
}

type DeleteAgentResponse struct {
	Status  string `json:"status"`
	AgentID string `json:"agent_id"`
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.auth.DeleteIdentity(r.Context(), middleware.Caller(r.Context()), id); err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, DeleteAgentResponse{Status: "deleted", AgentID: id}, http.StatusOK)
}

// handleListTokens processes requests to retrieve active issued tokens.
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.auth.ListActiveTokens(r.Context(), middleware.Caller(r.Context()))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, tokens, http.StatusOK)
}

// handleListAudit processes requests to retrieve audit log entries.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50
	if limitStr := q.Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 0 {
			log.Ctx(r.Context()).Warn().Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	entries, err := s.auth.RecentAudit(r.Context(), middleware.Caller(r.Context()), q.Get("action"), limit)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	presenter.JSON(w, r, entries, http.StatusOK)
}

// handleListTasks responds with the list of tasks and their statuses.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		presenter.JSON(w, r, []tasks.TaskStatus{}, http.StatusOK)
		return
	}
	presenter.JSON(w, r, s.tasks.ListStatus(), http.StatusOK)
}

type TriggerTaskResponse struct {
	Status string `json:"status"`
}

// handleTriggerTask starts a background run of the named task.
func (s *Server) handleTriggerTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		s.notFound(w, r)
		return
	}
	if err := s.tasks.Trigger(chi.URLParam(r, "name")); err != nil {
		s.taskError(w, r, err)
		return
	}
	presenter.JSON(w, r, TriggerTaskResponse{
		Status: "triggered",
	}, http.StatusAccepted)
}

// handleLogsForTask retrieves logs for a specific task.
func (s *Server) handleLogsForTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		s.notFound(w, r)
		return
	}
	logs, err := s.tasks.GetLogs(chi.URLParam(r, "name"))
	if err != nil {
		s.taskError(w, r, err)
		return
	}
	presenter.JSON(w, r, logs, http.StatusOK)
}

func (s *Server) taskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tasks.ErrTaskNotFound):
		presenter.Error(w, r, err.Error(), http.StatusNotFound)
	case errors.Is(err, tasks.ErrTaskRunning):
		presenter.Error(w, r, err.Error(), http.StatusConflict)
	default:
		presenter.Err(w, r, err)
	}
}
