// Package admin serves operator endpoints: live sessions and the per-visitor
// consent audit trail.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sitepulse/internal/session"
	dErrors "sitepulse/pkg/domain-errors"
	"sitepulse/pkg/platform/audit"
	"sitepulse/pkg/platform/httputil"
	adminmw "sitepulse/pkg/platform/middleware/admin"
	"sitepulse/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/admin-mocks.go -package=mocks Sessions,AuditTrail

// Sessions is the session manager surface operators can see and close.
type Sessions interface {
	Snapshot() []session.Summary
	Close(ctx context.Context, sessionID string) error
}

// AuditTrail reads recorded audit events.
type AuditTrail interface {
	List(ctx context.Context, visitorID string) ([]audit.Event, error)
}

// Handler handles admin endpoints.
type Handler struct {
	logger   *slog.Logger
	sessions Sessions
	audit    AuditTrail
	token    string
}

func New(sessions Sessions, trail AuditTrail, token string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		sessions: sessions,
		audit:    trail,
		token:    token,
	}
}

// Register mounts the admin routes behind the admin token.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(h.token, h.logger))
		r.Get("/sessions", h.handleListSessions)
		r.Delete("/sessions/{sessionID}", h.handleCloseSession)
		r.Get("/visitors/{visitorID}/audit", h.handleAuditTrail)
	})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := h.sessions.Snapshot()
	httputil.WriteJSON(w, http.StatusOK, SessionsListResponse{
		Sessions: sessions,
		Total:    len(sessions),
	})
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if err := h.sessions.Close(ctx, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "session closed by operator",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", id,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	visitorID := strings.TrimSpace(chi.URLParam(r, "visitorID"))
	if visitorID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid visitor id"))
		return
	}

	events, err := h.audit.List(ctx, visitorID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", requestcontext.RequestID(ctx),
			"visitor_id", visitorID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit trail unavailable"))
		return
	}

	resp := AuditTrailResponse{VisitorID: visitorID, Events: make([]AuditEntryResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, AuditEntryResponse{
			Action:    string(e.Action),
			Category:  string(e.Category),
			Decision:  e.Decision,
			Region:    e.Region,
			RequestID: e.RequestID,
			Timestamp: e.Timestamp,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
