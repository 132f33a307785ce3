package agreement

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/homepact/homepact/internal/platform/httpx"
)

// Handler exposes agreement endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers agreement routes under a family scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createDraft)
	r.Get("/active", h.getActive)
	r.Get("/history", h.getHistory)
	r.Post("/{agreementID}/sign", h.sign)
	r.Post("/{agreementID}/activate", h.activate)
	r.Post("/{agreementID}/archive", h.archive)
	r.Get("/{agreementID}/expiry", h.expiry)
}

// ActorUID extracts the caller identity proven upstream. Authentication
// itself is outside this service.
func ActorUID(r *http.Request) string {
	return r.Header.Get("X-Actor-UID")
}

func familyID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "familyID"))
}

type createDraftRequest struct {
	Terms      string     `json:"terms" validate:"required"`
	Required   []string   `json:"required_signers" validate:"required,min=1,dive,required"`
	ExpiryDate *time.Time `json:"expiry_date"`
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	fid, err := familyID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid family id")
		return
	}
	var req createDraftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.UnprocessableEntity(w, err.Error())
		return
	}
	a, err := h.service.CreateDraft(r.Context(), CreateDraftInput{
		FamilyID:   fid,
		Terms:      req.Terms,
		Required:   req.Required,
		ExpiryDate: req.ExpiryDate,
	}, ActorUID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

type signRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) sign(w http.ResponseWriter, r *http.Request) {
	fid, err := familyID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid family id")
		return
	}
	aid, err := uuid.Parse(chi.URLParam(r, "agreementID"))
	if err != nil {
		httpx.BadRequest(w, "invalid agreement id")
		return
	}
	var req signRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.UnprocessableEntity(w, err.Error())
		return
	}
	a, err := h.service.Sign(r.Context(), fid, aid, req.Role, ActorUID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	fid, err := familyID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid family id")
		return
	}
	aid, err := uuid.Parse(chi.URLParam(r, "agreementID"))
	if err != nil {
		httpx.BadRequest(w, "invalid agreement id")
		return
	}
	a, err := h.service.Activate(r.Context(), fid, aid, ActorUID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

type archiveRequest struct {
	Reason       string     `json:"reason" validate:"required,oneof=new_version manual expired"`
	SupersededBy *uuid.UUID `json:"superseded_by"`
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	fid, err := familyID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid family id")
		return
	}
	aid, err := uuid.Parse(chi.URLParam(r, "agreementID"))
	if err != nil {
		httpx.BadRequest(w, "invalid agreement id")
		return
	}
	var req archiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.UnprocessableEntity(w, err.Error())
		return
	}
	a, err := h.service.Archive(r.Context(), fid, aid, ArchiveReason(req.Reason), req.SupersededBy, ActorUID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) getActive(w http.ResponseWriter, r *http.Request) {
	fid, err := familyID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid family id")
		return
	}
	a, err := h.service.GetActive(r.Context(), fid)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	fid, err := familyID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid family id")
		return
	}
	history, err := h.service.GetHistory(r.Context(), fid)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) expiry(w http.ResponseWriter, r *http.Request) {
	fid, err := familyID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid family id")
		return
	}
	aid, err := uuid.Parse(chi.URLParam(r, "agreementID"))
	if err != nil {
		httpx.BadRequest(w, "invalid agreement id")
		return
	}
	outlook, err := h.service.Outlook(r.Context(), fid, aid)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, outlook)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.NotFound(w, "agreement not found")
	case errors.Is(err, ErrAlreadyActive):
		httpx.Conflict(w, "agreement is already active")
	case errors.Is(err, ErrAlreadyArchived):
		httpx.Conflict(w, "agreement is already archived")
	case errors.Is(err, ErrSignaturesIncomplete):
		httpx.UnprocessableEntity(w, "all required signatures must be collected before activation")
	default:
		h.logger.Error("agreement request failed", slog.Any("error", err))
		httpx.Internal(w)
	}
}
