package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/handler/chat"
	"github.com/techfala/ia-wizard/backend/internal/handler/persona"
	"github.com/techfala/ia-wizard/backend/internal/handler/stream"
	voicehandler "github.com/techfala/ia-wizard/backend/internal/handler/voice"
	"github.com/techfala/ia-wizard/backend/internal/handler/wizard"
	middlewarePkg "github.com/techfala/ia-wizard/backend/internal/middleware"
	personaModel "github.com/techfala/ia-wizard/backend/internal/model/persona"
	"github.com/techfala/ia-wizard/backend/internal/observability"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/voice"
	"github.com/techfala/ia-wizard/backend/pkg/utils"
)

// Deps are the services the router wires to HTTP routes.
type Deps struct {
	Personas       personaModel.Store
	Flows          *flow.Manager
	Voice          voice.Config
	Metrics        *observability.Metrics
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Logger, deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"status": "ok", "flows": deps.Flows.Len()})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas).RegisterRoutes(api)

		// Everything below is per visitor.
		api.Group(func(visitor chi.Router) {
			visitor.Use(middlewarePkg.Identity)
			wizard.New(deps.Flows).RegisterRoutes(visitor)
			chat.New(deps.Flows).RegisterRoutes(visitor)
			stream.New(deps.Flows).RegisterRoutes(visitor)
			voicehandler.New(deps.Flows, deps.Voice, deps.Metrics).RegisterRoutes(visitor)
		})
	})

	return r
}
