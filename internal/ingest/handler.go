// Package ingest exposes the beacon endpoints: signal batches, session close
// and per-session feature flags.
package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sitepulse/internal/flags"
	"sitepulse/internal/session"
	dErrors "sitepulse/pkg/domain-errors"
	"sitepulse/pkg/platform/httputil"
	pstrings "sitepulse/pkg/platform/strings"
	"sitepulse/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/ingest-mocks.go -package=mocks Sessions

// Sessions is the session manager surface used by the handler.
type Sessions interface {
	Apply(ctx context.Context, sessionID, visitorID string, signals []session.Signal) (session.Result, error)
	Close(ctx context.Context, sessionID string) error
	Flags(ctx context.Context, sessionID string, keys []string) (map[string]flags.Value, error)
}

const maxFlagKeys = 50

// SignalBatchRequest is one beacon post.
type SignalBatchRequest struct {
	VisitorID string           `json:"visitor_id"`
	Signals   []session.Signal `json:"signals"`
}

// FlagsResponse holds resolved flags. Unresolved keys are omitted so the
// client falls back to its own defaults.
type FlagsResponse struct {
	Flags map[string]flags.Value `json:"flags"`
}

// Handler handles beacon endpoints.
type Handler struct {
	logger   *slog.Logger
	sessions Sessions
}

func New(sessions Sessions, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		sessions: sessions,
	}
}

// Register registers the beacon routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/sessions/{sessionID}", func(r chi.Router) {
		r.Post("/signals", h.handleSignals)
		r.Post("/close", h.handleClose)
		r.Get("/flags", h.handleFlags)
	})
}

func (h *Handler) handleSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req SignalBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid signal batch",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	res, err := h.sessions.Apply(ctx, sessionID, strings.TrimSpace(req.VisitorID), req.Signals)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to apply signals",
				"request_id", requestID,
				"session_id", sessionID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, res)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.sessions.Close(r.Context(), sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFlags(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	keys := pstrings.SplitList(r.URL.Query().Get("keys"))
	if len(keys) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "keys query parameter is required"))
		return
	}
	if len(keys) > maxFlagKeys {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "too many flag keys"))
		return
	}

	values, err := h.sessions.Flags(r.Context(), sessionID, keys)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FlagsResponse{Flags: values})
}

func sessionIDParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if id == "" || len(id) > 128 {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid session id")
	}
	return id, nil
}
