// Package mockhook is a local stand-in for the external automation backend.
// It speaks the same three webhook routes as the real workflow so the API
// service can be exercised end to end.
package mockhook

import (
	"context"
	"crypto/subtle"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/model/chat"
	"github.com/techfala/ia-wizard/backend/internal/model/persona"
	"github.com/techfala/ia-wizard/backend/internal/service/ai"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
	"github.com/techfala/ia-wizard/backend/pkg/utils"
)

// Replier produces the assistant's answer. *ai.Service satisfies it.
type Replier interface {
	Reply(ctx context.Context, req ai.Request) (string, error)
}

// Server handles the webhook routes.
type Server struct {
	store    Store
	personas persona.Store
	replier  Replier
	token    string
	log      *zap.Logger
	now      func() time.Time
	number   func() string
}

type Option func(*Server)

// WithReplier answers messages with a model instead of the canned echo.
func WithReplier(r Replier) Option { return func(s *Server) { s.replier = r } }

// WithToken requires "Authorization: Bearer <token>" on every route.
func WithToken(token string) Option { return func(s *Server) { s.token = strings.TrimSpace(token) } }

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithNumberSource overrides how trial numbers are drawn.
func WithNumberSource(fn func() string) Option { return func(s *Server) { s.number = fn } }

func NewServer(store Store, personas persona.Store, opts ...Option) *Server {
	s := &Server{
		store:    store,
		personas: personas,
		now:      time.Now,
		number:   randomNumber,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Or(s.log).With(zap.String("component", "mockhook"))
	return s
}

func randomNumber() string {
	return fmt.Sprintf("+55 11 9%04d-%04d", rand.IntN(10000), rand.IntN(10000))
}

// Handler returns the chi router serving the webhook routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Group(func(r chi.Router) {
		r.Use(s.authorize)
		r.Post(webhook.RouteReserveNumber, s.handleReserve)
		r.Post(webhook.RouteDefineMessage, s.handleMessage)
		r.Post(webhook.RouteDefinePhone, s.handlePhones)
	})
	return r
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				utils.RespondError(w, http.StatusUnauthorized, "invalid webhook token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type webhookRequest struct {
	UserID          string   `json:"userId"`
	Action          string   `json:"action"`
	Personality     string   `json:"personality"`
	Message         string   `json:"message"`
	Prompt          string   `json:"prompt"`
	PromptAlteracao string   `json:"prompt-alteracao"`
	PhoneNumbers    []string `json:"phoneNumbers"`
	Timestamp       string   `json:"timestamp"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (webhookRequest, bool) {
	var req webhookRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid JSON payload")
		return req, false
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	profile, err := s.store.LoadProfile(r.Context(), req.UserID)
	if err != nil {
		s.fail(w, "load profile", err)
		return
	}
	profile.Personality = req.Personality
	profile.SessionID = uuid.NewString()
	profile.Number = s.number()
	profile.UpdatedAt = s.now()
	if err := s.store.SaveProfile(r.Context(), req.UserID, profile); err != nil {
		s.fail(w, "save profile", err)
		return
	}

	s.log.Info("number reserved", zap.String("user_id", req.UserID), zap.String("personality", req.Personality))
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"number":    profile.Number,
		"sessionId": profile.SessionID,
		"expiresAt": s.now().Add(webhook.ReservationTTL).UTC().Format(webhook.TimestampLayout),
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	switch req.Action {
	case "define_prompt", "update_prompt":
		s.storePrompt(w, r, req)
	case "send_message", "":
		s.reply(w, r, req)
	default:
		utils.RespondError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (s *Server) storePrompt(w http.ResponseWriter, r *http.Request, req webhookRequest) {
	prompt := req.Prompt
	if req.Action == "update_prompt" {
		prompt = req.PromptAlteracao
	}
	if strings.TrimSpace(prompt) == "" {
		utils.RespondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	profile, err := s.store.LoadProfile(r.Context(), req.UserID)
	if err != nil {
		s.fail(w, "load profile", err)
		return
	}
	if req.Action == "update_prompt" && profile.Prompt != "" {
		profile.Prompt = profile.Prompt + "\n" + prompt
	} else {
		profile.Prompt = prompt
	}
	profile.UpdatedAt = s.now()
	if err := s.store.SaveProfile(r.Context(), req.UserID, profile); err != nil {
		s.fail(w, "save profile", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "response": "Prompt atualizado com sucesso."})
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, req webhookRequest) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	profile, err := s.store.LoadProfile(ctx, req.UserID)
	if err != nil {
		s.fail(w, "load profile", err)
		return
	}
	history, err := s.store.History(ctx, req.UserID)
	if err != nil {
		s.fail(w, "load history", err)
		return
	}

	answer := s.cannedReply(profile.Personality, text)
	if s.replier != nil {
		generated, err := s.replier.Reply(ctx, ai.Request{
			PersonaID: profile.Personality,
			Prompt:    profile.Prompt,
			History:   history,
			Message:   text,
		})
		if err != nil {
			s.log.Warn("model reply failed, using canned reply", zap.Error(err))
		} else {
			answer = generated
		}
	}

	now := s.now()
	if err := s.store.Append(ctx, req.UserID,
		chat.Message{Text: text, Sender: chat.SenderUser, Timestamp: chat.Stamp(now)},
		chat.Message{Text: answer, Sender: chat.SenderAssistant, Timestamp: chat.Stamp(now)},
	); err != nil {
		s.log.Warn("append history failed", zap.String("user_id", req.UserID), zap.Error(err))
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"resposta-i.a": answer})
}

func (s *Server) cannedReply(personalityID, text string) string {
	p, ok := s.personas.FindByID(personalityID)
	if !ok {
		p, _ = s.personas.FindByID(persona.DefaultID)
	}
	return fmt.Sprintf("Recebi sua mensagem: \"%s\". Sou a assistente de %s e posso ajudar com %s.",
		text, strings.ToLower(p.Name), strings.ToLower(strings.Join(p.Features, ", ")))
}

func (s *Server) handlePhones(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	profile, err := s.store.LoadProfile(r.Context(), req.UserID)
	if err != nil {
		s.fail(w, "load profile", err)
		return
	}
	profile.Phones = append([]string{}, req.PhoneNumbers...)
	profile.UpdatedAt = s.now()
	if err := s.store.SaveProfile(r.Context(), req.UserID, profile); err != nil {
		s.fail(w, "save profile", err)
		return
	}

	s.log.Info("phones defined", zap.String("user_id", req.UserID), zap.Int("count", len(profile.Phones)))
	utils.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "phones": profile.Phones})
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.log.Error("mockhook "+op+" failed", zap.Error(err))
	utils.RespondError(w, http.StatusInternalServerError, "internal error")
}
