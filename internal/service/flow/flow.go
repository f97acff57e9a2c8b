// Package flow ties the onboarding wizard, the trial session, the chat
// transcript and voice personalisation together for one visitor.
package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	chatmodel "github.com/techfala/ia-wizard/backend/internal/model/chat"
	"github.com/techfala/ia-wizard/backend/internal/model/persona"
	"github.com/techfala/ia-wizard/backend/internal/observability"
	"github.com/techfala/ia-wizard/backend/internal/service/actions"
	"github.com/techfala/ia-wizard/backend/internal/service/chat"
	"github.com/techfala/ia-wizard/backend/internal/service/trial"
	"github.com/techfala/ia-wizard/backend/internal/service/voice"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
	"github.com/techfala/ia-wizard/backend/internal/service/wizard"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
)

var (
	ErrNotFound           = errors.New("flow: not found")
	ErrUnknownPersonality = errors.New("flow: unknown personality")
	ErrNoTrial            = errors.New("flow: trial is only available once the wizard is complete")
	ErrChatInactive       = errors.New("flow: chat requires an active trial session")
	ErrInvalidWebhook     = errors.New("flow: webhook base url must be an http(s) url")
)

// Deps are shared by every flow a Manager creates.
type Deps struct {
	Personas persona.Store
	Webhook  webhook.Config

	TrialSeconds      int
	TickInterval      time.Duration
	ProcessingTick    time.Duration
	HTTPClient        *http.Client
	NotificationLimit int

	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Flow is one visitor's in-memory state. Backend calls are made without
// holding the flow lock.
type Flow struct {
	id   string
	deps Deps
	log  *zap.Logger

	notices     *actions.Queue
	personalize *voice.Personalization

	mu         sync.Mutex
	machine    *wizard.Machine
	names      *wizard.NamePicker
	webhookCfg webhook.Config
	runner     *actions.Runner
	trial      *trial.Controller
	transcript *chat.Transcript
	lastSeen   time.Time
	closed     bool
}

func newFlow(id string, deps Deps) *Flow {
	f := &Flow{
		id:          id,
		deps:        deps,
		log:         logger.Or(deps.Logger).With(zap.String("visitor", id)),
		notices:     actions.NewQueue(deps.NotificationLimit),
		personalize: voice.NewPersonalization(deps.ProcessingTick),
		machine:     wizard.NewMachine(),
		webhookCfg:  deps.Webhook.Normalize(),
		lastSeen:    time.Now(),
	}
	f.runner = f.buildRunner(f.webhookCfg)
	return f
}

func (f *Flow) buildRunner(cfg webhook.Config) *actions.Runner {
	opts := []webhook.Option{webhook.WithLogger(f.log), webhook.WithMetrics(f.deps.Metrics)}
	if f.deps.HTTPClient != nil {
		opts = append(opts, webhook.WithHTTPClient(f.deps.HTTPClient))
	}
	client := webhook.NewClient(cfg, f.id, opts...)
	return actions.NewRunner(client, f.notices, actions.WithLogger(f.log), actions.WithMetrics(f.deps.Metrics))
}

func (f *Flow) ID() string { return f.id }

// Runner returns the action runner for the current webhook config.
func (f *Flow) Runner() *actions.Runner {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runner
}

func (f *Flow) touch() {
	f.mu.Lock()
	f.lastSeen = time.Now()
	f.mu.Unlock()
}

func (f *Flow) idleSince() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSeen
}

// runnerProxy always dispatches to the flow's current runner so a webhook
// config change applies to sessions already in progress.
type runnerProxy struct{ f *Flow }

func (p runnerProxy) ReserveNumber(ctx context.Context, personality string) *webhook.ReservedSession {
	return p.f.Runner().ReserveNumber(ctx, personality)
}

func (p runnerProxy) ReleaseNumber(ctx context.Context, sessionID string) bool {
	return p.f.Runner().ReleaseNumber(ctx, sessionID)
}

func (p runnerProxy) ChangePersonality(ctx context.Context, personality string) bool {
	return p.f.Runner().ChangePersonality(ctx, personality)
}

func (p runnerProxy) ClearMemory(ctx context.Context) bool {
	return p.f.Runner().ClearMemory(ctx)
}

func (p runnerProxy) SendMessage(ctx context.Context, text string) (any, bool) {
	return p.f.Runner().SendMessage(ctx, text)
}

// Continue leaves the welcome screen.
func (f *Flow) Continue() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.machine.Continue()
}

// SelectPersonality stores the chosen personality and prepares its name suggestions.
func (f *Flow) SelectPersonality(id string) error {
	id = strings.TrimSpace(id)
	if _, ok := f.deps.Personas.FindByID(id); !ok && id != "" {
		return fmt.Errorf("%w: %s", ErrUnknownPersonality, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.machine.SelectPersonality(id); err != nil {
		return err
	}
	f.names = wizard.NewNamePicker(persona.SuggestedNames(f.deps.Personas, id))
	return nil
}

func (f *Flow) namePickerLocked() (*wizard.NamePicker, error) {
	if f.machine.State().Step != wizard.StepName || f.names == nil {
		return nil, fmt.Errorf("%w: name picker used from %s", wizard.ErrInvalidTransition, f.machine.State().Step)
	}
	return f.names, nil
}

// NextName shows and selects the next suggestion.
func (f *Flow) NextName() (wizard.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.namePickerLocked()
	if err != nil {
		return wizard.View{}, err
	}
	p.Next()
	return p.View(), nil
}

// UseSuggestion selects the suggestion on display.
func (f *Flow) UseSuggestion() (wizard.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.namePickerLocked()
	if err != nil {
		return wizard.View{}, err
	}
	p.UseSuggestion()
	return p.View(), nil
}

// SetCustomName selects free text as the name.
func (f *Flow) SetCustomName(text string) (wizard.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.namePickerLocked()
	if err != nil {
		return wizard.View{}, err
	}
	p.SetCustom(text)
	return p.View(), nil
}

// ConfirmName commits the selected name and moves to the phone step.
func (f *Flow) ConfirmName(ctx context.Context) error {
	f.mu.Lock()
	p, err := f.namePickerLocked()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	if !p.CanConfirm() {
		f.mu.Unlock()
		return wizard.ErrNameRequired
	}
	if err := f.machine.SelectName(p.Candidate()); err != nil {
		f.mu.Unlock()
		return err
	}
	name := f.machine.State().Name
	runner := f.runner
	f.mu.Unlock()

	runner.DefineName(ctx, name)
	return nil
}

// SubmitPhones completes the wizard. Valid numbers are forwarded in the
// background; the transition never waits for them.
func (f *Flow) SubmitPhones(ctx context.Context, entries []string) ([]string, error) {
	f.mu.Lock()
	valid, err := f.machine.SubmitPhones(entries)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.enterCompleteLocked()
	runner := f.runner
	f.mu.Unlock()

	if len(valid) > 0 {
		runner.DefinePhoneDetached(ctx, valid)
	}
	return valid, nil
}

// SharePhones forwards extra numbers from inside the trial screen without changing step.
func (f *Flow) SharePhones(ctx context.Context, entries []string) ([]string, error) {
	if len(entries) > wizard.MaxPhones {
		return nil, wizard.ErrTooManyPhones
	}
	f.mu.Lock()
	if f.machine.State().Step != wizard.StepComplete {
		f.mu.Unlock()
		return nil, ErrNoTrial
	}
	runner := f.runner
	f.mu.Unlock()

	valid := wizard.FilterPhones(entries)
	if len(valid) > 0 {
		runner.DefinePhoneDetached(ctx, valid)
	}
	return valid, nil
}

func (f *Flow) enterCompleteLocked() {
	if f.trial != nil {
		return
	}
	f.trial = trial.NewController(runnerProxy{f},
		trial.WithDuration(f.deps.TrialSeconds),
		trial.WithTickInterval(f.deps.TickInterval),
		trial.WithLogger(f.log),
		trial.WithMetrics(f.deps.Metrics),
		trial.OnTerminate(func(trial.Event) { f.dropTranscript() }),
	)
}

// leaveCompleteLocked unmounts the trial screen: the session is discarded
// without release and the conversation is forgotten.
func (f *Flow) leaveCompleteLocked() {
	if f.trial != nil {
		f.trial.Close()
		f.trial = nil
	}
	f.transcript = nil
}

func (f *Flow) dropTranscript() {
	f.mu.Lock()
	f.transcript = nil
	f.mu.Unlock()
}

// ChangePersonality tells the backend about the current personality when a
// session is reserved, then returns to personality selection.
func (f *Flow) ChangePersonality(ctx context.Context) error {
	f.mu.Lock()
	if f.machine.State().Step != wizard.StepComplete {
		f.mu.Unlock()
		return fmt.Errorf("%w: change personality from %s", wizard.ErrInvalidTransition, f.machine.State().Step)
	}
	ctrl := f.trial
	personality := f.machine.State().Personality
	f.mu.Unlock()

	if ctrl != nil {
		ctrl.ChangePersonality(ctx, personality)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.machine.ChangePersonality(); err != nil {
		return err
	}
	f.leaveCompleteLocked()
	return nil
}

// Restart returns to the welcome screen from anywhere.
func (f *Flow) Restart() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaveCompleteLocked()
	f.machine.Restart()
	f.names = nil
}

func (f *Flow) trialController() (*trial.Controller, wizard.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trial == nil {
		return nil, f.machine.State(), ErrNoTrial
	}
	return f.trial, f.machine.State(), nil
}

// Trial exposes the trial controller for streaming, or ErrNoTrial.
func (f *Flow) Trial() (*trial.Controller, error) {
	ctrl, _, err := f.trialController()
	return ctrl, err
}

// StartTrial reserves a number and opens a fresh conversation.
func (f *Flow) StartTrial(ctx context.Context) (trial.Snapshot, error) {
	ctrl, state, err := f.trialController()
	if err != nil {
		return trial.Snapshot{}, err
	}

	snap, err := ctrl.Start(ctx, state.Personality)
	if err != nil {
		return snap, err
	}

	f.mu.Lock()
	if f.trial == ctrl {
		f.transcript = chat.NewTranscript(state.Name, runnerProxy{f})
	}
	f.mu.Unlock()
	return snap, nil
}

// EndTrial releases the number and stops the countdown.
func (f *Flow) EndTrial(ctx context.Context) (trial.Snapshot, error) {
	ctrl, _, err := f.trialController()
	if err != nil {
		return trial.Snapshot{}, err
	}
	return ctrl.End(ctx), nil
}

// ClearMemory asks the backend to forget the conversation of the active session.
func (f *Flow) ClearMemory(ctx context.Context) (bool, error) {
	ctrl, _, err := f.trialController()
	if err != nil {
		return false, err
	}
	return ctrl.ClearMemory(ctx), nil
}

func (f *Flow) currentTranscript() (*chat.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transcript == nil {
		return nil, ErrChatInactive
	}
	return f.transcript, nil
}

// SendMessage posts a chat message and waits for the assistant reply.
func (f *Flow) SendMessage(ctx context.Context, text string) (chatmodel.Message, error) {
	tr, err := f.currentTranscript()
	if err != nil {
		return chatmodel.Message{}, err
	}
	return tr.Send(ctx, text)
}

// Messages returns the conversation of the active session.
func (f *Flow) Messages() ([]chatmodel.Message, error) {
	tr, err := f.currentTranscript()
	if err != nil {
		return nil, err
	}
	return tr.Messages(), nil
}

// SendPrompt defines or alters the assistant prompt.
func (f *Flow) SendPrompt(ctx context.Context, prompt string, mode webhook.PromptMode) (any, bool) {
	return f.Runner().SendPrompt(ctx, prompt, mode)
}

// WebhookConfig returns the backend config in use for this visitor.
func (f *Flow) WebhookConfig() webhook.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.webhookCfg
}

// SetWebhookConfig points this visitor at another backend. A blank token
// means none.
func (f *Flow) SetWebhookConfig(cfg webhook.Config) (webhook.Config, error) {
	cfg = cfg.Normalize()
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return webhook.Config{}, ErrInvalidWebhook
	}
	cfg.Timeout = f.deps.Webhook.Timeout

	runner := f.buildRunner(cfg)
	f.mu.Lock()
	f.webhookCfg = cfg
	f.runner = runner
	f.mu.Unlock()
	f.log.Info("webhook config overridden", zap.String("base_url", cfg.BaseURL), zap.Bool("token", cfg.Token != ""))
	return cfg, nil
}

// Personalization returns the voice personalisation flow.
func (f *Flow) Personalization() *voice.Personalization { return f.personalize }

// Notify queues a notification for the visitor.
func (f *Flow) Notify(n actions.Notification) { f.notices.Notify(n) }

// View is the serialisable flow state.
type View struct {
	VisitorID     string                         `json:"visitorId"`
	Wizard        wizard.State                   `json:"wizard"`
	Names         *wizard.View                   `json:"names,omitempty"`
	Trial         *trial.Snapshot                `json:"trial,omitempty"`
	ChatActive    bool                           `json:"chatActive"`
	Actions       map[actions.Kind]actions.State `json:"actions"`
	IsLoading     bool                           `json:"isLoading"`
	Notifications []actions.Notification         `json:"notifications"`
	Webhook       webhook.Config                 `json:"webhook"`
	Personalize   voice.PersonalizeView          `json:"personalize"`
}

// Snapshot returns the current state and drains pending notifications.
func (f *Flow) Snapshot() View {
	f.mu.Lock()
	v := View{
		VisitorID:  f.id,
		Wizard:     f.machine.State(),
		ChatActive: f.transcript != nil,
		Webhook:    f.webhookCfg,
	}
	if f.names != nil && v.Wizard.Step == wizard.StepName {
		names := f.names.View()
		v.Names = &names
	}
	ctrl := f.trial
	runner := f.runner
	f.mu.Unlock()

	if ctrl != nil {
		snap := ctrl.Snapshot()
		v.Trial = &snap
	}
	v.Actions = runner.States()
	v.IsLoading = runner.IsLoading()
	v.Notifications = f.notices.Drain()
	v.Personalize = f.personalize.View()
	return v
}

// Close unmounts everything the flow owns.
func (f *Flow) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.leaveCompleteLocked()
	f.mu.Unlock()
	f.personalize.Finish()
}
