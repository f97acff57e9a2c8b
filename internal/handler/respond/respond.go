// Package respond 把领域错误映射为 HTTP 状态码。
package respond

import (
	"errors"
	"net/http"

	"github.com/techfala/ia-wizard/backend/internal/service/chat"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/trial"
	"github.com/techfala/ia-wizard/backend/internal/service/voice"
	"github.com/techfala/ia-wizard/backend/internal/service/wizard"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
	"github.com/techfala/ia-wizard/backend/pkg/utils"

	"go.uber.org/zap"
)

// Status 返回 err 对应的状态码。
func Status(err error) int {
	switch {
	case errors.Is(err, wizard.ErrPersonalityRequired),
		errors.Is(err, wizard.ErrNameRequired),
		errors.Is(err, wizard.ErrTooManyPhones),
		errors.Is(err, flow.ErrUnknownPersonality),
		errors.Is(err, flow.ErrInvalidWebhook),
		errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, flow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, wizard.ErrInvalidTransition),
		errors.Is(err, trial.ErrAlreadyActive),
		errors.Is(err, trial.ErrClosed),
		errors.Is(err, flow.ErrNoTrial),
		errors.Is(err, flow.ErrChatInactive),
		errors.Is(err, voice.ErrWrongStep):
		return http.StatusConflict
	case errors.Is(err, trial.ErrReservationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error 写出错误响应。5xx 记录日志，内部细节不外泄。
func Error(w http.ResponseWriter, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		logger.Base().Error("unhandled handler error", zap.Error(err))
		utils.RespondError(w, status, "internal error")
		return
	}
	utils.RespondError(w, status, err.Error())
}
