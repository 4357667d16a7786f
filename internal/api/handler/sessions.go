package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/api/middleware"
	"github.com/heatwise/heatwise/internal/api/models"
	"github.com/heatwise/heatwise/internal/api/response"
	"github.com/heatwise/heatwise/internal/featureflags"
	"github.com/heatwise/heatwise/internal/lookup"
	"github.com/heatwise/heatwise/internal/mitigation"
	"github.com/heatwise/heatwise/internal/session"
)

// FlagChecker reports whether a runtime feature flag is on.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string) bool
}

// SessionHandler handles session, lookup and plan endpoints.
type SessionHandler struct {
	sessions *session.Service
	flags    FlagChecker
	logger   zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler. flags may be nil.
func NewSessionHandler(sessions *session.Service, flags FlagChecker, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		flags:    flags,
		logger:   logger,
	}
}

// CreateSession handles POST /v1/sessions.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	snap := h.sessions.Create()
	response.Created(w, r, "/v1/sessions/"+snap.ID, toSessionModel(snap))
}

// GetSession handles GET /v1/sessions/{sessionID}.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Get(sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toSessionModel(snap))
}

// DeleteSession handles DELETE /v1/sessions/{sessionID}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(sessionID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// Lookup handles POST /v1/sessions/{sessionID}/lookups. The session is
// returned on success and on lookup failure the problem detail carries the
// user-facing message, with the previous assessment left in place.
func (h *SessionHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	if h.flags != nil && h.flags.IsEnabled(r.Context(), featureflags.FlagDisableLookups) {
		response.ServiceUnavailable(w, r, "Lookups are temporarily disabled.")
		return
	}

	var req models.LookupRequest
	if detail, fields, ok := decodeBody(w, r, &req); !ok {
		response.BadRequest(w, r, detail, fields)
		return
	}

	snap, err := h.sessions.Lookup(r.Context(), sessionID(r), req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toSessionModel(snap))
}

// GetMap handles GET /v1/sessions/{sessionID}/map: the reference circle and
// counted green areas of the current assessment.
func (h *SessionHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Get(sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if snap.Current == nil {
		response.NotFound(w, r, "session has no assessment yet")
		return
	}
	response.JSON(w, r, http.StatusOK, toMapModel(snap.Current))
}

// AddPlanItem handles POST /v1/sessions/{sessionID}/plan/items.
func (h *SessionHandler) AddPlanItem(w http.ResponseWriter, r *http.Request) {
	var req models.PlanItemRequest
	if detail, fields, ok := decodeBody(w, r, &req); !ok {
		response.BadRequest(w, r, detail, fields)
		return
	}

	snap, err := h.sessions.AddAction(sessionID(r), req.ActionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toPlanModel(snap.Plan, snap.Summary))
}

// GetPlan handles GET /v1/sessions/{sessionID}/plan.
func (h *SessionHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Get(sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toPlanModel(snap.Plan, snap.Summary))
}

// ClearPlan handles DELETE /v1/sessions/{sessionID}/plan.
func (h *SessionHandler) ClearPlan(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.ClearPlan(sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toPlanModel(snap.Plan, snap.Summary))
}

func (h *SessionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		response.NotFound(w, r, "session not found")
	case errors.Is(err, lookup.ErrInFlight):
		response.Conflict(w, r, "A lookup is already in progress for this session.")
	case errors.Is(err, lookup.ErrNotFound):
		response.LocationNotFound(w, r, lookup.Message(err))
	case errors.Is(err, lookup.ErrSearchFailed):
		response.SearchFailed(w, r, lookup.Message(err))
	case errors.Is(err, mitigation.ErrUnknownAction):
		response.BadRequest(w, r, "unknown action", []models.FieldError{
			{Field: "actionId", Message: "is not a catalog action", Code: "oneof"},
		})
	case errors.Is(err, context.Canceled):
		// The client left; the lookup finishes in the background.
		h.logger.Debug().Str("request_id", middleware.GetRequestID(r.Context())).Msg("request canceled")
	default:
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("unhandled session error")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, middleware.SessionIDParam)
}
