// Package wizard exposes the onboarding steps over HTTP.
package wizard

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/techfala/ia-wizard/backend/internal/handler/respond"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
	"github.com/techfala/ia-wizard/backend/pkg/utils"
)

// Handler 向导流程的HTTP处理器
type Handler struct {
	flows *flow.Manager
}

func New(flows *flow.Manager) *Handler {
	return &Handler{flows: flows}
}

// RegisterRoutes 注册 /flow 下的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/flow", func(r chi.Router) {
		r.Get("/", h.handleSnapshot)
		r.Post("/continue", h.handleContinue)
		r.Post("/personality", h.handlePersonality)
		r.Post("/name/next", h.handleNextName)
		r.Post("/name/suggestion", h.handleUseSuggestion)
		r.Post("/name/custom", h.handleCustomName)
		r.Post("/name/confirm", h.handleConfirmName)
		r.Post("/phones", h.handlePhones)
		r.Post("/change-personality", h.handleChangePersonality)
		r.Post("/restart", h.handleRestart)
		r.Get("/webhook", h.handleGetWebhook)
		r.Put("/webhook", h.handlePutWebhook)
	})
}

// with 解析当前访客的 flow，成功时执行 fn 并返回最新快照。
func (h *Handler) with(w http.ResponseWriter, r *http.Request, fn func(f *flow.Flow) error) {
	f, err := h.flows.FromContext(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	if fn != nil {
		if err := fn(f); err != nil {
			respond.Error(w, err)
			return
		}
	}
	utils.RespondJSON(w, http.StatusOK, f.Snapshot())
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, nil)
}

func (h *Handler) handleContinue(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(f *flow.Flow) error { return f.Continue() })
}

func (h *Handler) handlePersonality(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Personality string `json:"personality"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.with(w, r, func(f *flow.Flow) error { return f.SelectPersonality(payload.Personality) })
}

func (h *Handler) handleNextName(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(f *flow.Flow) error {
		_, err := f.NextName()
		return err
	})
}

func (h *Handler) handleUseSuggestion(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(f *flow.Flow) error {
		_, err := f.UseSuggestion()
		return err
	})
}

func (h *Handler) handleCustomName(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.with(w, r, func(f *flow.Flow) error {
		_, err := f.SetCustomName(payload.Name)
		return err
	})
}

func (h *Handler) handleConfirmName(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(f *flow.Flow) error { return f.ConfirmName(r.Context()) })
}

func (h *Handler) handlePhones(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PhoneNumbers []string `json:"phoneNumbers"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.with(w, r, func(f *flow.Flow) error {
		_, err := f.SubmitPhones(r.Context(), payload.PhoneNumbers)
		return err
	})
}

func (h *Handler) handleChangePersonality(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(f *flow.Flow) error { return f.ChangePersonality(r.Context()) })
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(f *flow.Flow) error {
		f.Restart()
		return nil
	})
}

func (h *Handler) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	f, err := h.flows.FromContext(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, f.WebhookConfig())
}

func (h *Handler) handlePutWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhook.Config
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, err := h.flows.FromContext(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	cfg, err := f.SetWebhookConfig(payload)
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, cfg)
}
