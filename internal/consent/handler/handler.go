package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sitepulse/internal/consent/models"
	dErrors "sitepulse/pkg/domain-errors"
	"sitepulse/pkg/platform/httputil"
	"sitepulse/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/consent-mocks.go -package=mocks Service

// Service defines the consent operations exposed over HTTP.
type Service interface {
	Get(ctx context.Context, visitorID string) models.State
	Set(ctx context.Context, visitorID string, choices models.Choices) (models.State, error)
	Clear(ctx context.Context, visitorID string) error
}

const maxVisitorIDLen = 128

const (
	presetAcceptAll     = "accept_all"
	presetEssentialOnly = "essential_only"
)

// SetConsentRequest carries either a preset or both explicit choices.
type SetConsentRequest struct {
	Preset    string `json:"preset,omitempty"`
	Analytics *bool  `json:"analytics,omitempty"`
	Marketing *bool  `json:"marketing,omitempty"`
}

// Choices validates the request and resolves it to a decision.
func (r SetConsentRequest) Choices() (models.Choices, error) {
	preset := strings.TrimSpace(strings.ToLower(r.Preset))
	if preset != "" {
		if r.Analytics != nil || r.Marketing != nil {
			return models.Choices{}, dErrors.New(dErrors.CodeValidation, "preset cannot be combined with explicit choices")
		}
		switch preset {
		case presetAcceptAll:
			return models.AcceptAll(), nil
		case presetEssentialOnly:
			return models.EssentialOnly(), nil
		default:
			return models.Choices{}, dErrors.New(dErrors.CodeValidation, "unknown preset: "+r.Preset)
		}
	}
	if r.Analytics == nil || r.Marketing == nil {
		return models.Choices{}, dErrors.New(dErrors.CodeValidation, "analytics and marketing are required")
	}
	return models.Choices{Analytics: *r.Analytics, Marketing: *r.Marketing}, nil
}

// ConsentResponse is the visitor's consent plus what the banner needs.
type ConsentResponse struct {
	Analytics    bool           `json:"analytics"`
	Marketing    bool           `json:"marketing"`
	Essential    bool           `json:"essential"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty"`
	Region       models.Region  `json:"region"`
	ShouldPrompt bool           `json:"should_prompt"`
	Defaults     models.Choices `json:"defaults"`
}

// DefaultsResponse is the pre-decision banner state for the caller's region.
type DefaultsResponse struct {
	Region   models.Region  `json:"region"`
	Defaults models.Choices `json:"defaults"`
}

func toResponse(state models.State) ConsentResponse {
	return ConsentResponse{
		Analytics:    state.Granted(models.CategoryAnalytics),
		Marketing:    state.Granted(models.CategoryMarketing),
		Essential:    true,
		DecidedAt:    state.DecidedAt,
		Region:       state.Region,
		ShouldPrompt: !state.Decided(),
		Defaults:     models.DefaultsFor(state.Region),
	}
}

// Handler handles consent endpoints.
type Handler struct {
	logger  *slog.Logger
	consent Service
}

func New(consent Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		consent: consent,
	}
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/consent/defaults", h.handleDefaults)
	r.Route("/v1/visitors/{visitorID}/consent", func(r chi.Router) {
		r.Get("/", h.handleGetConsent)
		r.Put("/", h.handleSetConsent)
		r.Delete("/", h.handleClearConsent)
	})
}

func (h *Handler) handleDefaults(w http.ResponseWriter, r *http.Request) {
	region := models.RegionFromCountry(requestcontext.Country(r.Context()))
	httputil.WriteJSON(w, http.StatusOK, DefaultsResponse{
		Region:   region,
		Defaults: models.DefaultsFor(region),
	})
}

func (h *Handler) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	visitorID, err := visitorIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(h.consent.Get(r.Context(), visitorID)))
}

func (h *Handler) handleSetConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	visitorID, err := visitorIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req SetConsentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid set consent request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	choices, err := req.Choices()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	state, err := h.consent.Set(ctx, visitorID, choices)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to set consent",
			"request_id", requestID,
			"visitor_id", visitorID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(state))
}

func (h *Handler) handleClearConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	visitorID, err := visitorIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.consent.Clear(ctx, visitorID); err != nil {
		h.logger.ErrorContext(ctx, "failed to clear consent",
			"request_id", requestcontext.RequestID(ctx),
			"visitor_id", visitorID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func visitorIDParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "visitorID"))
	if id == "" || len(id) > maxVisitorIDLen {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid visitor id")
	}
	return id, nil
}
