// Package stream pushes the trial countdown to the browser over Server-Sent Events.
package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/handler/respond"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/trial"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
	"github.com/techfala/ia-wizard/backend/pkg/utils"
)

const heartbeatInterval = 15 * time.Second

// Handler manages the countdown event stream
type Handler struct {
	flows     *flow.Manager
	heartbeat time.Duration
	log       *zap.Logger
}

func New(flows *flow.Manager) *Handler {
	return &Handler{
		flows:     flows,
		heartbeat: heartbeatInterval,
		log:       logger.Base().With(zap.String("component", "sse")),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/trial/stream", h.handleStream)
}

// countdownEvent is the payload of every SSE event.
type countdownEvent struct {
	Remaining int    `json:"remaining"`
	Clock     string `json:"clock"`
	Active    bool   `json:"active"`
}

func eventName(e trial.Event) string {
	switch e {
	case trial.EventEnded, trial.EventExpired, trial.EventClosed:
		return "ended"
	case trial.EventStarted:
		return "started"
	default:
		return "tick"
	}
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	f, err := h.flows.FromContext(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	ctrl, err := f.Trial()
	if err != nil {
		respond.Error(w, err)
		return
	}

	updates, cancel := ctrl.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	send := func(event string, snap trial.Snapshot) bool {
		err := utils.SendSSEEvent(w, flusher, event, countdownEvent{
			Remaining: snap.Remaining,
			Clock:     snap.Clock,
			Active:    snap.Active,
		})
		return err == nil
	}

	initial := ctrl.Snapshot()
	if err := utils.SendSSEChunk(w, flusher, countdownEvent{Remaining: initial.Remaining, Clock: initial.Clock, Active: initial.Active}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	h.log.Debug("countdown stream opened", zap.String("visitor", f.ID()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case snap, open := <-updates:
			if !open {
				// 试用界面已卸载
				send("ended", ctrl.Snapshot())
				return
			}
			if !send(eventName(snap.Event), snap) {
				return
			}
		}
	}
}
