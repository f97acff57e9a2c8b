package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/techfala/ia-wizard/backend/internal/handler/respond"
	"github.com/techfala/ia-wizard/backend/internal/service/actions"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
	"github.com/techfala/ia-wizard/backend/pkg/utils"
)

// Handler 试用会话与聊天的HTTP处理器
type Handler struct {
	flows *flow.Manager
}

// New 创建聊天处理器
func New(flows *flow.Manager) *Handler {
	return &Handler{flows: flows}
}

// RegisterRoutes 注册试用与聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/trial/start", h.handleStartTrial)
	r.Post("/trial/end", h.handleEndTrial)
	r.Post("/trial/clear-memory", h.handleClearMemory)
	r.Post("/trial/share", h.handleShare)
	r.Get("/chat/messages", h.handleListMessages)
	r.Post("/chat/messages", h.handleSendMessage)
	r.Post("/chat/prompt", h.handlePrompt)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) (*flow.Flow, bool) {
	f, err := h.flows.FromContext(r.Context())
	if err != nil {
		respond.Error(w, err)
		return nil, false
	}
	return f, true
}

// handleStartTrial 预留号码并开始倒计时
func (h *Handler) handleStartTrial(w http.ResponseWriter, r *http.Request) {
	f, ok := h.current(w, r)
	if !ok {
		return
	}
	snap, err := f.StartTrial(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleEndTrial(w http.ResponseWriter, r *http.Request) {
	f, ok := h.current(w, r)
	if !ok {
		return
	}
	snap, err := f.EndTrial(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	f, ok := h.current(w, r)
	if !ok {
		return
	}
	cleared, err := f.ClearMemory(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": cleared})
}

func (h *Handler) handleShare(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PhoneNumbers []string `json:"phoneNumbers"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, ok := h.current(w, r)
	if !ok {
		return
	}
	sent, err := f.SharePhones(r.Context(), payload.PhoneNumbers)
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]any{"phoneNumbers": sent})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	f, ok := h.current(w, r)
	if !ok {
		return
	}
	msgs, err := f.Messages()
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, msgs)
}

// handleSendMessage 发送消息并等待助手回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, ok := h.current(w, r)
	if !ok {
		return
	}
	reply, err := f.SendMessage(r.Context(), payload.Text)
	if err != nil {
		respond.Error(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt string             `json:"prompt"`
		Mode   webhook.PromptMode `json:"mode"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Prompt == "" {
		utils.RespondError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	switch payload.Mode {
	case "":
		payload.Mode = webhook.PromptOriginal
	case webhook.PromptOriginal, webhook.PromptAlteracao:
	default:
		utils.RespondError(w, http.StatusBadRequest, "mode must be original or alteracao")
		return
	}

	f, ok := h.current(w, r)
	if !ok {
		return
	}
	body, sent := f.SendPrompt(r.Context(), payload.Prompt, payload.Mode)
	if !sent {
		utils.RespondError(w, http.StatusBadGateway, f.Runner().State(actions.KindSendPrompt).Error)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "response": body})
}
