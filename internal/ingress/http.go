package ingress

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/regnantlabs/regent/internal/bus"
	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/decision"
	"github.com/regnantlabs/regent/internal/errors"
	"github.com/regnantlabs/regent/internal/scheduler"
	"github.com/regnantlabs/regent/internal/store"
	"github.com/regnantlabs/regent/internal/stream"
	"github.com/regnantlabs/regent/internal/surface"
)

// Server exposes the command bus, event stream, and surface registry over
// HTTP. It is a thin JSON shim; all semantics live in the packages it wraps.
type Server struct {
	bus      *bus.Bus
	stream   *stream.Stream
	registry *surface.Registry
	store    *store.Store
	planner  *scheduler.Planner
	logger   *slog.Logger
	server   *http.Server
}

func NewServer(cfg config.ServerConfig, b *bus.Bus, st *stream.Stream, registry *surface.Registry, db *store.Store, logger *slog.Logger) (*Server, error) {
	readTimeout, err := config.DurationOrDefault(cfg.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server read timeout: %w", err)
	}
	writeTimeout, err := config.DurationOrDefault(cfg.WriteTimeout, config.DefaultServerWriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server write timeout: %w", err)
	}
	idleTimeout, err := config.DurationOrDefault(cfg.IdleTimeout, config.DefaultServerIdleTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server idle timeout: %w", err)
	}

	mux := http.NewServeMux()
	s := &Server{
		bus:      b,
		stream:   st,
		registry: registry,
		store:    db,
		planner:  scheduler.NewPlanner(db),
		logger:   logger,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
	}

	mux.HandleFunc("POST /api/v1/commands", s.handleDispatch)
	mux.HandleFunc("GET /api/v1/commands", s.handleListCommands)
	mux.HandleFunc("GET /api/v1/commands/{id}", s.handleGetCommand)
	mux.HandleFunc("POST /api/v1/commands/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/v1/commands/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /api/v1/events", s.handleCollect)
	mux.HandleFunc("GET /api/v1/events", s.handleQueryEvents)
	mux.HandleFunc("POST /api/v1/surfaces", s.handleRegisterSurface)
	mux.HandleFunc("GET /api/v1/surfaces", s.handleListSurfaces)
	mux.HandleFunc("GET /api/v1/surfaces/{id}", s.handleGetSurface)
	mux.HandleFunc("GET /api/v1/workspaces/{id}/mode", s.handleGetMode)
	mux.HandleFunc("PUT /api/v1/workspaces/{id}/mode", s.handleSetMode)
	mux.HandleFunc("POST /api/v1/schedules", s.handleAddSchedule)
	mux.HandleFunc("GET /api/v1/schedules", s.handleListSchedules)
	mux.HandleFunc("DELETE /api/v1/schedules/{id}", s.handleRemoveSchedule)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s, nil
}

// Handler returns the route table for tests that drive the server through
// httptest instead of a real listener.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the listener in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting http server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type dispatchRequest struct {
	WorkspaceID      string                 `json:"workspace_id"`
	ActorID          string                 `json:"actor_id"`
	SourceSurface    string                 `json:"source_surface"`
	Intent           string                 `json:"intent"`
	Parameters       map[string]interface{} `json:"parameters"`
	RequiresApproval bool                   `json:"requires_approval"`
	ThreadID         string                 `json:"thread_id"`
	CorrelationID    string                 `json:"correlation_id"`
	ParentCommandID  string                 `json:"parent_command_id"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.bus.Dispatch(r.Context(), bus.DispatchRequest{
		WorkspaceID:      req.WorkspaceID,
		ActorID:          req.ActorID,
		SourceSurface:    req.SourceSurface,
		Intent:           req.Intent,
		Parameters:       req.Parameters,
		RequiresApproval: req.RequiresApproval,
		ThreadID:         req.ThreadID,
		CorrelationID:    req.CorrelationID,
		ParentCommandID:  req.ParentCommandID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	result, err := s.bus.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.bus.Reject(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := s.bus.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.CommandFilter{
		WorkspaceID: q.Get("workspace_id"),
		Status:      store.CommandStatus(q.Get("status")),
		ActorID:     q.Get("actor_id"),
		Limit:       queryInt(q.Get("limit")),
	}
	commands, err := s.bus.List(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"commands": commands})
}

type collectRequest struct {
	WorkspaceID   string                 `json:"workspace_id"`
	SourceSurface string                 `json:"source_surface"`
	EventType     string                 `json:"event_type"`
	ActorID       string                 `json:"actor_id"`
	Payload       map[string]interface{} `json:"payload"`
	CommandID     string                 `json:"command_id"`
	ThreadID      string                 `json:"thread_id"`
	CorrelationID string                 `json:"correlation_id"`
	ParentEventID string                 `json:"parent_event_id"`
	ExecutionID   string                 `json:"execution_id"`
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := s.stream.Collect(r.Context(), stream.Record{
		WorkspaceID:   req.WorkspaceID,
		SourceSurface: req.SourceSurface,
		EventType:     req.EventType,
		ActorID:       req.ActorID,
		Payload:       req.Payload,
		CommandID:     req.CommandID,
		ThreadID:      req.ThreadID,
		CorrelationID: req.CorrelationID,
		ParentEventID: req.ParentEventID,
		ExecutionID:   req.ExecutionID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *Server) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	workspaceID := q.Get("workspace_id")
	filter := store.EventFilter{
		SourceSurface: q.Get("source_surface"),
		EventType:     q.Get("event_type"),
		ActorID:       q.Get("actor_id"),
		CommandID:     q.Get("command_id"),
		ThreadID:      q.Get("thread_id"),
		CorrelationID: q.Get("correlation_id"),
		ExecutionID:   q.Get("execution_id"),
		PackID:        q.Get("pack_id"),
		CardID:        q.Get("card_id"),
		Limit:         queryInt(q.Get("limit")),
	}
	events, err := s.stream.Query(r.Context(), workspaceID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleRegisterSurface(w http.ResponseWriter, r *http.Request) {
	var def surface.Definition
	if !decodeJSON(w, r, &def) {
		return
	}
	if err := s.registry.Register(def); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"surface_id": def.ID})
}

func (s *Server) handleGetSurface(w http.ResponseWriter, r *http.Request) {
	def, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleListSurfaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"surfaces": s.registry.List()})
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("id")
	mode, err := s.store.GovernanceMode(workspaceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"workspace_id": workspaceID, "mode": mode})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Mode != string(decision.ModeStrict) && req.Mode != string(decision.ModeWarning) {
		writeError(w, errors.InvalidInput("mode must be strict or warning"))
		return
	}
	workspaceID := r.PathValue("id")
	if err := s.store.SetGovernanceMode(workspaceID, req.Mode); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("governance mode changed", "workspace_id", workspaceID, "mode", req.Mode)
	writeJSON(w, http.StatusOK, map[string]string{"workspace_id": workspaceID, "mode": req.Mode})
}

type scheduleRequest struct {
	WorkspaceID      string                 `json:"workspace_id"`
	ActorID          string                 `json:"actor_id"`
	Intent           string                 `json:"intent"`
	Parameters       map[string]interface{} `json:"parameters"`
	RequiresApproval bool                   `json:"requires_approval"`
	CronExpr         string                 `json:"cron_expr"`
	Enabled          bool                   `json:"enabled"`
}

func (s *Server) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	schedule := &store.Schedule{
		WorkspaceID:      req.WorkspaceID,
		ActorID:          req.ActorID,
		Intent:           req.Intent,
		Parameters:       req.Parameters,
		RequiresApproval: req.RequiresApproval,
		CronExpr:         req.CronExpr,
		Enabled:          req.Enabled,
	}
	if err := s.planner.Add(schedule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, schedule)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.planner.List(r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schedules": schedules})
}

func (s *Server) handleRemoveSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.Remove(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"schedule_id": r.PathValue("id")})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
