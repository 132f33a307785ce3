package proposal

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/homepact/homepact/internal/agreement"
	"github.com/homepact/homepact/internal/platform/httpx"
)

// Handler exposes proposal endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountFamilyRoutes registers family-scoped proposal routes.
func (h *Handler) MountFamilyRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.listForFamily)
}

// MountRoutes registers proposal-scoped routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{proposalID}", h.get)
	r.Post("/{proposalID}/respond", h.respond)
	r.Post("/{proposalID}/approve", h.approve)
	r.Post("/{proposalID}/decline", h.decline)
	r.Post("/{proposalID}/withdraw", h.withdraw)
}

func actorUID(r *http.Request) string {
	return r.Header.Get("X-Actor-UID")
}

func proposalID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "proposalID"))
}

type createRequest struct {
	ChildUID     string    `json:"child_uid" validate:"required"`
	AgreementID  uuid.UUID `json:"agreement_id" validate:"required"`
	ProposerName string    `json:"proposer_name" validate:"required"`
	ProposerType string    `json:"proposer_type" validate:"required,oneof=parent child"`
	Summary      string    `json:"summary" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	fid, err := uuid.Parse(chi.URLParam(r, "familyID"))
	if err != nil {
		httpx.BadRequest(w, "invalid family id")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.UnprocessableEntity(w, err.Error())
		return
	}
	p, err := h.service.Create(r.Context(), CreateInput{
		FamilyID:     fid,
		ChildUID:     req.ChildUID,
		AgreementID:  req.AgreementID,
		ProposerUID:  actorUID(r),
		ProposerName: req.ProposerName,
		ProposerType: ProposerType(req.ProposerType),
		Summary:      req.Summary,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) listForFamily(w http.ResponseWriter, r *http.Request) {
	fid, err := uuid.Parse(chi.URLParam(r, "familyID"))
	if err != nil {
		httpx.BadRequest(w, "invalid family id")
		return
	}
	proposals, err := h.service.ListForFamily(r.Context(), fid)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, proposals)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid proposal id")
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type respondRequest struct {
	Action string  `json:"action" validate:"required,oneof=accept decline counter"`
	Reason *string `json:"reason"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid proposal id")
		return
	}
	var req respondRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.UnprocessableEntity(w, err.Error())
		return
	}
	p, err := h.service.Respond(r.Context(), id, actorUID(r), Action(req.Action), req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type gateRequest struct {
	Name   string  `json:"name" validate:"required"`
	Reason *string `json:"reason"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid proposal id")
		return
	}
	var req gateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.UnprocessableEntity(w, err.Error())
		return
	}
	p, err := h.service.ApproveAsCoParent(r.Context(), id, actorUID(r), req.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) decline(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid proposal id")
		return
	}
	var req gateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.UnprocessableEntity(w, err.Error())
		return
	}
	p, err := h.service.DeclineAsCoParent(r.Context(), id, actorUID(r), req.Name, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid proposal id")
		return
	}
	p, err := h.service.Withdraw(r.Context(), id, actorUID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.NotFound(w, "proposal not found")
	case errors.Is(err, ErrSelfApproval):
		httpx.Conflict(w, "you can't approve or decline your own proposal; withdraw it instead")
	case errors.Is(err, ErrNotAwaitingApproval):
		httpx.Conflict(w, "proposal is not awaiting co-parent approval")
	case errors.Is(err, ErrProposalExpired):
		httpx.Gone(w, "proposal has expired")
	case errors.Is(err, ErrNotAuthorized):
		httpx.Forbidden(w, "only the proposer can withdraw a proposal")
	case errors.Is(err, ErrCoParentApprovalPending):
		httpx.Conflict(w, "the other parent needs to approve this change first")
	case errors.Is(err, ErrNotPending):
		httpx.Conflict(w, "proposal has already been resolved")
	case errors.Is(err, agreement.ErrSignaturesIncomplete):
		httpx.Conflict(w, "the referenced agreement still needs signatures before it can take effect")
	case errors.Is(err, agreement.ErrNotFound):
		httpx.Conflict(w, "the referenced agreement no longer exists")
	default:
		h.logger.Error("proposal request failed", slog.Any("error", err))
		httpx.Internal(w)
	}
}
