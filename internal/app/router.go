package app

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/homepact/homepact/internal/agreement"
	"github.com/homepact/homepact/internal/platform/httpx"
	"github.com/homepact/homepact/internal/proposal"
	"github.com/homepact/homepact/internal/renewal"
	"github.com/homepact/homepact/internal/shared"
	"github.com/homepact/homepact/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AgreementHandler *agreement.Handler
	ProposalHandler  *proposal.Handler
	RenewalHandler   *renewal.Handler
	JobHandler       *jobs.Handler
	Audit            *shared.AuditLogger
}

// NewRouter constructs the chi.Router with Homepact defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/families/{familyID}", func(family chi.Router) {
			family.Route("/agreements", params.AgreementHandler.MountRoutes)
			family.Route("/proposals", params.ProposalHandler.MountFamilyRoutes)
			family.Get("/activity", activityHandler(params.Audit, params.Logger))
		})
		api.Route("/proposals", params.ProposalHandler.MountRoutes)
		api.Route("/renewals", params.RenewalHandler.MountRoutes)
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

func activityHandler(audit *shared.AuditLogger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		familyID, err := uuid.Parse(chi.URLParam(r, "familyID"))
		if err != nil {
			httpx.BadRequest(w, "invalid family id")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := audit.List(r.Context(), familyID, limit)
		if err != nil {
			logger.Error("list activity", slog.Any("error", err))
			httpx.Internal(w)
			return
		}
		httpx.JSON(w, http.StatusOK, entries)
	}
}
