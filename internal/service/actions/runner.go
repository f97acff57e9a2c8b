// Package actions wraps automation backend calls with per-action progress
// state, user notifications and sentinel results instead of errors.
package actions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/observability"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
)

// Kind names one wrapped backend operation.
type Kind string

const (
	KindReserveNumber     Kind = "reserve_number"
	KindSendMessage       Kind = "send_message"
	KindSendPrompt        Kind = "send_prompt"
	KindChangePersonality Kind = "change_personality"
	KindDefineName        Kind = "define_name"
	KindDefinePhone       Kind = "define_phone"
	KindClearMemory       Kind = "clear_memory"
	KindReleaseNumber     Kind = "release_number"
)

// Kinds lists every action kind in a stable order.
var Kinds = []Kind{
	KindReserveNumber, KindSendMessage, KindSendPrompt, KindChangePersonality,
	KindDefineName, KindDefinePhone, KindClearMemory, KindReleaseNumber,
}

// State is the progress of one action kind.
type State struct {
	Pending bool   `json:"pending"`
	Error   string `json:"error,omitempty"`
}

// Client is the backend surface the runner wraps. *webhook.Client satisfies it.
type Client interface {
	ReserveNumber(ctx context.Context, personality string) (webhook.ReservedSession, error)
	SendMessage(ctx context.Context, message string) (any, error)
	SendPrompt(ctx context.Context, prompt string, mode webhook.PromptMode) (any, error)
	DefinePhone(ctx context.Context, phones []string) error
	ChangePersonality(ctx context.Context, personality string) error
	DefineName(ctx context.Context, name string) error
	ClearMemory(ctx context.Context) error
	ReleaseNumber(ctx context.Context, sessionID string) error
}

var (
	reservedNotice = func(number string) Notification {
		return Notification{Title: "Número Reservado", Description: fmt.Sprintf("Número %s reservado com sucesso!", number), Variant: VariantDefault}
	}
	connectionFailedNotice = Notification{
		Title:       "Erro na Conexão",
		Description: "Verifique se o servidor está configurado corretamente e acessível.",
		Variant:     VariantDestructive,
	}
	sendFailedNotice = Notification{
		Title:       "Erro ao Enviar Mensagem",
		Description: "Verifique se o servidor está configurado corretamente.",
		Variant:     VariantDestructive,
	}
	personalityChangedNotice = Notification{
		Title:       "Personalidade Alterada",
		Description: "A personalidade da IA foi alterada com sucesso!",
		Variant:     VariantDefault,
	}
)

// Option customises a Runner.
type Option func(*Runner)

func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.log = l } }

func WithMetrics(m *observability.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// WithDetachTimeout bounds how long a detached task may run.
func WithDetachTimeout(d time.Duration) Option { return func(r *Runner) { r.detachTimeout = d } }

// Runner executes backend actions and tracks their state per kind.
type Runner struct {
	client   Client
	notifier Notifier
	log      *zap.Logger
	metrics  *observability.Metrics

	detachTimeout time.Duration
	detached      sync.WaitGroup

	mu     sync.Mutex
	states map[Kind]State
}

func NewRunner(client Client, notifier Notifier, opts ...Option) *Runner {
	r := &Runner{
		client:        client,
		notifier:      notifier,
		states:        make(map[Kind]State, len(Kinds)),
		detachTimeout: time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = NotifierFunc(func(Notification) {})
	}
	r.log = logger.Or(r.log).With(zap.String("component", "actions"))
	return r
}

func (r *Runner) begin(kind Kind) {
	r.mu.Lock()
	r.states[kind] = State{Pending: true}
	r.mu.Unlock()
}

func (r *Runner) settle(kind Kind, err error) {
	st := State{}
	if err != nil {
		st.Error = err.Error()
		r.log.Warn("action failed", zap.String("action", string(kind)), zap.Error(err))
	}
	r.mu.Lock()
	r.states[kind] = st
	r.mu.Unlock()
	r.metrics.ObserveAction(string(kind), err == nil)
}

// State returns the current state of kind.
func (r *Runner) State(kind Kind) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[kind]
}

// States returns a copy of every kind's state.
func (r *Runner) States() map[Kind]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Kind]State, len(Kinds))
	for _, k := range Kinds {
		out[k] = r.states[k]
	}
	return out
}

// IsLoading reports whether any action is in flight.
func (r *Runner) IsLoading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.states {
		if st.Pending {
			return true
		}
	}
	return false
}

// ReserveNumber returns nil when the reservation failed.
func (r *Runner) ReserveNumber(ctx context.Context, personality string) *webhook.ReservedSession {
	r.begin(KindReserveNumber)
	session, err := r.client.ReserveNumber(ctx, personality)
	r.settle(KindReserveNumber, err)
	if err != nil {
		r.notifier.Notify(connectionFailedNotice)
		return nil
	}
	r.notifier.Notify(reservedNotice(session.Number))
	return &session
}

// SendMessage returns the raw response and true, or nil and false on failure.
func (r *Runner) SendMessage(ctx context.Context, text string) (any, bool) {
	r.begin(KindSendMessage)
	body, err := r.client.SendMessage(ctx, text)
	r.settle(KindSendMessage, err)
	if err != nil {
		r.notifier.Notify(sendFailedNotice)
		return nil, false
	}
	return body, true
}

func (r *Runner) SendPrompt(ctx context.Context, prompt string, mode webhook.PromptMode) (any, bool) {
	r.begin(KindSendPrompt)
	body, err := r.client.SendPrompt(ctx, prompt, mode)
	r.settle(KindSendPrompt, err)
	if err != nil {
		return nil, false
	}
	return body, true
}

func (r *Runner) ChangePersonality(ctx context.Context, personality string) bool {
	r.begin(KindChangePersonality)
	err := r.client.ChangePersonality(ctx, personality)
	r.settle(KindChangePersonality, err)
	if err != nil {
		return false
	}
	r.notifier.Notify(personalityChangedNotice)
	return true
}

func (r *Runner) DefineName(ctx context.Context, name string) bool {
	r.begin(KindDefineName)
	err := r.client.DefineName(ctx, name)
	r.settle(KindDefineName, err)
	return err == nil
}

func (r *Runner) DefinePhone(ctx context.Context, phones []string) bool {
	r.begin(KindDefinePhone)
	err := r.client.DefinePhone(ctx, phones)
	r.settle(KindDefinePhone, err)
	return err == nil
}

// ClearMemory and ReleaseNumber do not touch the progress state.
func (r *Runner) ClearMemory(ctx context.Context) bool {
	err := r.client.ClearMemory(ctx)
	r.metrics.ObserveAction(string(KindClearMemory), err == nil)
	return err == nil
}

func (r *Runner) ReleaseNumber(ctx context.Context, sessionID string) bool {
	err := r.client.ReleaseNumber(ctx, sessionID)
	r.metrics.ObserveAction(string(KindReleaseNumber), err == nil)
	return err == nil
}

// Detach runs fn in the background with a context that survives the caller's
// cancellation. The result is only logged.
func (r *Runner) Detach(ctx context.Context, kind Kind, fn func(ctx context.Context) bool) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.detachTimeout)
	r.detached.Add(1)
	go func() {
		defer r.detached.Done()
		defer cancel()
		if ok := fn(bg); !ok {
			r.log.Warn("detached action did not succeed", zap.String("action", string(kind)))
		}
	}()
}

// DefinePhoneDetached forwards phones without waiting for the outcome.
func (r *Runner) DefinePhoneDetached(ctx context.Context, phones []string) {
	phones = append([]string(nil), phones...)
	r.Detach(ctx, KindDefinePhone, func(ctx context.Context) bool {
		return r.DefinePhone(ctx, phones)
	})
}

// Wait blocks until all detached tasks have finished.
func (r *Runner) Wait() {
	r.detached.Wait()
}
