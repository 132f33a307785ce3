package renewal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/homepact/homepact/internal/platform/httpx"
)

// Handler exposes renewal endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers renewal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.initiate)
	r.Get("/{renewalID}", h.get)
	r.Get("/{renewalID}/next-step", h.nextStep)
	r.Post("/{renewalID}/consent/parent", h.parentConsent)
	r.Post("/{renewalID}/consent/child", h.childConsent)
	r.Post("/{renewalID}/complete", h.complete)
	r.Post("/{renewalID}/cancel", h.cancel)
}

func actorUID(r *http.Request) string {
	return r.Header.Get("X-Actor-UID")
}

func renewalID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "renewalID"))
}

type initiateRequest struct {
	AgreementID   uuid.UUID  `json:"agreement_id" validate:"required"`
	FamilyID      uuid.UUID  `json:"family_id" validate:"required"`
	ChildUID      string     `json:"child_uid" validate:"required"`
	Mode          string     `json:"mode" validate:"required,oneof=renew-as-is renew-with-changes"`
	Duration      string     `json:"duration" validate:"required,oneof=3-months 6-months 1-year no-expiry"`
	CurrentExpiry *time.Time `json:"current_expiry"`
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.UnprocessableEntity(w, err.Error())
		return
	}
	renewal, err := h.service.Initiate(r.Context(), InitiateInput{
		AgreementID:   req.AgreementID,
		FamilyID:      req.FamilyID,
		ChildUID:      req.ChildUID,
		Mode:          Mode(req.Mode),
		Duration:      Duration(req.Duration),
		CurrentExpiry: req.CurrentExpiry,
	}, actorUID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, renewal)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := renewalID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid renewal id")
		return
	}
	renewal, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, renewal)
}

func (h *Handler) nextStep(w http.ResponseWriter, r *http.Request) {
	id, err := renewalID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid renewal id")
		return
	}
	step, err := h.service.NextStep(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"next_step": string(step)})
}

type consentRequest struct {
	Signature string `json:"signature" validate:"required"`
}

func (h *Handler) parentConsent(w http.ResponseWriter, r *http.Request) {
	h.consent(w, r, h.service.ParentConsent)
}

func (h *Handler) childConsent(w http.ResponseWriter, r *http.Request) {
	h.consent(w, r, h.service.ChildConsent)
}

func (h *Handler) consent(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID, signature string) (Renewal, error)) {
	id, err := renewalID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid renewal id")
		return
	}
	var req consentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.UnprocessableEntity(w, err.Error())
		return
	}
	renewal, err := apply(r.Context(), id, req.Signature)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, renewal)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := renewalID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid renewal id")
		return
	}
	renewal, err := h.service.Complete(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, renewal)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := renewalID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid renewal id")
		return
	}
	renewal, err := h.service.Cancel(r.Context(), id, actorUID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, renewal)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.NotFound(w, "renewal not found")
	default:
		h.logger.Error("renewal request failed", slog.Any("error", err))
		httpx.Internal(w)
	}
}
