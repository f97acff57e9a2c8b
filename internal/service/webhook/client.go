package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/observability"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
)

const (
	RouteReserveNumber  = "/webhook/reservar-numero"
	RouteDefineMessage  = "/webhook/definir-mensagem"
	RouteDefinePhone    = "/webhook/alterar-ia-telefone"
	FallbackNumber      = "+55 11 99999-9999"
	ReservationTTL      = 15 * time.Minute
	TimestampLayout     = "2006-01-02T15:04:05.000Z"
	defaultTimeout      = 30 * time.Second
	maxResponseBytes    = 4 << 20
	maxErrorBodyPreview = 512
)

// PromptMode selects between defining and altering the assistant prompt.
type PromptMode string

const (
	PromptOriginal  PromptMode = "original"
	PromptAlteracao PromptMode = "alteracao"
)

// Config points the client at an automation backend.
type Config struct {
	BaseURL string        `json:"baseUrl"`
	Token   string        `json:"webhookToken,omitempty"`
	Timeout time.Duration `json:"-"`
}

// Normalize trims whitespace and trailing slashes. A blank token means none.
func (c Config) Normalize() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Token = strings.TrimSpace(c.Token)
	return c
}

// ReservedSession is the result of a successful number reservation.
type ReservedSession struct {
	Number      string `json:"number"`
	SessionID   string `json:"sessionId"`
	Personality string `json:"personality"`
	ExpiresAt   string `json:"expiresAt"`
}

// Option customises a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides the time source used for timestamps and fallback expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client talks to the automation backend on behalf of one visitor identity.
type Client struct {
	cfg     Config
	userID  string
	http    *http.Client
	log     *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewClient(cfg Config, userID string, opts ...Option) *Client {
	cfg = cfg.Normalize()
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		userID: userID,
		http:   &http.Client{Timeout: timeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.Or(c.log).With(zap.String("component", "webhook"))
	return c
}

func (c *Client) UserID() string { return c.userID }

func (c *Client) Config() Config { return c.cfg }

func (c *Client) timestamp() string {
	return c.now().UTC().Format(TimestampLayout)
}

// ReserveNumber asks the backend for a trial phone number. Missing response
// fields are filled with local defaults.
func (c *Client) ReserveNumber(ctx context.Context, personality string) (ReservedSession, error) {
	body, err := c.post(ctx, RouteReserveNumber, map[string]any{
		"userId":      c.userID,
		"personality": personality,
		"timestamp":   c.timestamp(),
		"action":      "reserve_number",
	})
	if err != nil {
		return ReservedSession{}, err
	}

	fields, _ := body.(map[string]any)
	return ReservedSession{
		Number:      stringOr(fields, "number", FallbackNumber),
		SessionID:   stringOr(fields, "sessionId", c.userID),
		Personality: personality,
		ExpiresAt:   stringOr(fields, "expiresAt", c.now().Add(ReservationTTL).UTC().Format(TimestampLayout)),
	}, nil
}

// SendMessage forwards a chat message and returns the parsed response body unchanged.
func (c *Client) SendMessage(ctx context.Context, message string) (any, error) {
	return c.post(ctx, RouteDefineMessage, map[string]any{
		"userId":    c.userID,
		"message":   message,
		"timestamp": c.timestamp(),
		"action":    "send_message",
	})
}

// SendPrompt defines (PromptOriginal) or alters (PromptAlteracao) the assistant prompt.
func (c *Client) SendPrompt(ctx context.Context, prompt string, mode PromptMode) (any, error) {
	payload := map[string]any{
		"userId":    c.userID,
		"timestamp": c.timestamp(),
	}
	if mode == PromptAlteracao {
		payload["prompt-alteracao"] = prompt
		payload["action"] = "update_prompt"
	} else {
		payload["prompt"] = prompt
		payload["action"] = "define_prompt"
	}
	return c.post(ctx, RouteDefineMessage, payload)
}

// DefinePhone registers the phone numbers allowed to talk to the assistant.
func (c *Client) DefinePhone(ctx context.Context, phones []string) error {
	var primary *string
	if len(phones) > 0 {
		primary = &phones[0]
	}
	additional := []string{}
	if len(phones) > 1 {
		additional = append(additional, phones[1:]...)
	}
	if phones == nil {
		phones = []string{}
	}

	_, err := c.post(ctx, RouteDefinePhone, map[string]any{
		"userId":           c.userID,
		"phoneNumbers":     phones,
		"primaryPhone":     primary,
		"additionalPhones": additional,
		"timestamp":        c.timestamp(),
		"action":           "define_phone",
	})
	return err
}

// The automation workflow has no routes for the following operations yet;
// they succeed locally without I/O.

func (c *Client) ChangePersonality(_ context.Context, personality string) error {
	c.log.Debug("change personality not wired to backend", zap.String("personality", personality))
	return nil
}

func (c *Client) DefineName(_ context.Context, name string) error {
	c.log.Debug("define name not wired to backend", zap.String("name", name))
	return nil
}

func (c *Client) ClearMemory(_ context.Context) error {
	c.log.Debug("clear memory not wired to backend")
	return nil
}

func (c *Client) ReleaseNumber(_ context.Context, sessionID string) error {
	c.log.Debug("release number not wired to backend", zap.String("session_id", sessionID))
	return nil
}

func (c *Client) post(ctx context.Context, route string, payload map[string]any) (any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("webhook %s: encode request: %w", route, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+route, bytes.NewReader(raw))
	if err != nil {
		return nil, &TransportError{Route: route, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(route, "transport", start)
		c.log.Warn("webhook request failed", zap.String("route", route), zap.Error(err))
		return nil, &TransportError{Route: route, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyPreview))
		c.observe(route, "http_error", start)
		c.log.Warn("webhook returned error status", zap.String("route", route), zap.Int("status", resp.StatusCode))
		return nil, &NetworkError{Route: route, Status: resp.StatusCode, Body: strings.TrimSpace(string(preview))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(route, "transport", start)
		return nil, &TransportError{Route: route, Err: err}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		c.observe(route, "ok", start)
		return nil, nil
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		c.observe(route, "decode_error", start)
		c.log.Warn("webhook returned malformed body", zap.String("route", route), zap.Error(err))
		return nil, &DecodeError{Route: route, Err: err}
	}

	c.observe(route, "ok", start)
	c.log.Debug("webhook call completed",
		zap.String("route", route),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))
	return decoded, nil
}

func (c *Client) observe(route, outcome string, start time.Time) {
	c.metrics.ObserveWebhook(strings.TrimPrefix(route, "/webhook/"), outcome, time.Since(start))
}

func stringOr(fields map[string]any, key, fallback string) string {
	if v, ok := fields[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
