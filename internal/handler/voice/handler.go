// Package voice serves the microphone capture websocket and the voice
// personalisation endpoints.
package voice

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/handler/respond"
	"github.com/techfala/ia-wizard/backend/internal/observability"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/voice"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
	"github.com/techfala/ia-wizard/backend/pkg/utils"
)

// Handler 语音相关的HTTP处理器
type Handler struct {
	flows    *flow.Manager
	cfg      voice.Config
	metrics  *observability.Metrics
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// New 创建语音处理器
func New(flows *flow.Manager, cfg voice.Config, metrics *observability.Metrics) *Handler {
	if cfg.MIMEType == "" {
		cfg.MIMEType = voice.DefaultMIMEType
	}
	return &Handler{
		flows:   flows,
		cfg:     cfg,
		metrics: metrics,
		log:     logger.Base().With(zap.String("component", "voice")),
		upgrader: websocket.Upgrader{
			// 跨域由 CORS 中间件和 cookie 的 SameSite 负责
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册语音路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/ws", h.handleWebSocket)
	r.Get("/personalize", h.handlePersonalizeView)
	r.Post("/personalize/start", h.handlePersonalizeStart)
	r.Post("/personalize/finish", h.handlePersonalizeFinish)
}

func (h *Handler) personalization(w http.ResponseWriter, r *http.Request) (*voice.Personalization, bool) {
	f, err := h.flows.FromContext(r.Context())
	if err != nil {
		respond.Error(w, err)
		return nil, false
	}
	return f.Personalization(), true
}

func (h *Handler) handlePersonalizeView(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personalization(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, p.View())
}

func (h *Handler) handlePersonalizeStart(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personalization(w, r)
	if !ok {
		return
	}
	if err := p.Begin(); err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, p.View())
}

func (h *Handler) handlePersonalizeFinish(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personalization(w, r)
	if !ok {
		return
	}
	p.Finish()
	utils.RespondJSON(w, http.StatusOK, p.View())
}
