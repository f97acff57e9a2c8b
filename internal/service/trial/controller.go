// Package trial runs the time-boxed test session: reserving a number,
// counting down and releasing it again.
package trial

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/observability"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
)

var (
	ErrAlreadyActive     = errors.New("trial: session already active")
	ErrReservationFailed = errors.New("trial: number reservation failed")
	ErrClosed            = errors.New("trial: controller closed")
)

// Actions is the subset of the action runner the controller needs.
type Actions interface {
	ReserveNumber(ctx context.Context, personality string) *webhook.ReservedSession
	ReleaseNumber(ctx context.Context, sessionID string) bool
	ChangePersonality(ctx context.Context, personality string) bool
	ClearMemory(ctx context.Context) bool
}

// Event labels a published snapshot.
type Event string

const (
	EventStarted Event = "started"
	EventTick    Event = "tick"
	EventEnded   Event = "ended"
	EventExpired Event = "expired"
	EventClosed  Event = "closed"
)

// Snapshot is the externally visible trial state.
type Snapshot struct {
	Event     Event                    `json:"event,omitempty"`
	Active    bool                     `json:"active"`
	Remaining int                      `json:"remaining"`
	Clock     string                   `json:"clock"`
	Session   *webhook.ReservedSession `json:"session,omitempty"`
}

// Option customises a Controller.
type Option func(*Controller)

// WithTickInterval sets the wall-clock tick period. Zero disables the internal
// ticker; callers then drive the countdown with Tick.
func WithTickInterval(d time.Duration) Option { return func(c *Controller) { c.interval = d } }

func WithDuration(seconds int) Option {
	return func(c *Controller) { c.countdown = NewCountdown(seconds) }
}

func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.log = l } }

func WithMetrics(m *observability.Metrics) Option { return func(c *Controller) { c.metrics = m } }

// OnTerminate registers a callback run after the session ends or expires.
func OnTerminate(fn func(Event)) Option { return func(c *Controller) { c.onTerminate = fn } }

// Controller owns one visitor's trial session.
type Controller struct {
	actions     Actions
	interval    time.Duration
	log         *zap.Logger
	metrics     *observability.Metrics
	onTerminate func(Event)

	mu          sync.Mutex
	countdown   *Countdown
	session     *webhook.ReservedSession
	starting    bool
	closed      bool
	generation  uint64
	stopTicker  context.CancelFunc
	subscribers map[int]chan Snapshot
	nextSubID   int
}

func NewController(actions Actions, opts ...Option) *Controller {
	c := &Controller{
		actions:     actions,
		interval:    time.Second,
		countdown:   NewCountdown(DefaultSeconds),
		subscribers: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.Or(c.log).With(zap.String("component", "trial"))
	return c
}

// Start reserves a number and begins the countdown. On failure the controller
// stays inactive and the visitor may retry.
func (c *Controller) Start(ctx context.Context, personality string) (Snapshot, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	case c.countdown.Active() || c.session != nil || c.starting:
		c.mu.Unlock()
		return Snapshot{}, ErrAlreadyActive
	}
	c.starting = true
	gen := c.generation
	c.mu.Unlock()

	session := c.actions.ReserveNumber(ctx, personality)

	c.mu.Lock()
	c.starting = false
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if session == nil {
		snap := c.snapshotLocked("")
		c.mu.Unlock()
		c.metrics.TrialEvent("failed")
		return snap, ErrReservationFailed
	}

	c.session = session
	c.countdown.Start()
	c.generation++
	c.startTickerLocked(c.generation)
	snap := c.snapshotLocked(EventStarted)
	c.mu.Unlock()

	c.metrics.TrialEvent(string(EventStarted))
	c.log.Info("trial session started", zap.String("session_id", session.SessionID), zap.String("personality", personality))
	c.publish(snap)
	return snap, nil
}

func (c *Controller) startTickerLocked(gen uint64) {
	if c.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopTicker = cancel
	go func() {
		t := time.NewTicker(c.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.tick(ctx, gen)
			}
		}
	}()
}

func (c *Controller) stopTickerLocked() {
	if c.stopTicker != nil {
		c.stopTicker()
		c.stopTicker = nil
	}
}

// Tick advances the countdown by one second.
func (c *Controller) Tick(ctx context.Context) Snapshot {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	c.tick(ctx, gen)
	return c.Snapshot()
}

func (c *Controller) tick(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.generation || !c.countdown.Active() {
		c.mu.Unlock()
		return
	}
	expired := c.countdown.Tick()
	snap := c.snapshotLocked(EventTick)
	c.mu.Unlock()

	if expired {
		c.terminate(context.WithoutCancel(ctx), gen, EventExpired)
		return
	}
	c.publish(snap)
}

// End terminates the session on request.
func (c *Controller) End(ctx context.Context) Snapshot {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	c.terminate(ctx, gen, EventEnded)
	return c.Snapshot()
}

// terminate releases the number (best effort), then clears the reservation and
// resets the countdown. Only the first caller for a generation does any work.
func (c *Controller) terminate(ctx context.Context, gen uint64, reason Event) {
	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		return
	}
	if c.session == nil && !c.countdown.Active() {
		c.countdown.Reset()
		c.mu.Unlock()
		return
	}
	c.generation++
	c.stopTickerLocked()
	session := c.session
	c.mu.Unlock()

	if session != nil {
		if !c.actions.ReleaseNumber(ctx, session.SessionID) {
			c.log.Warn("release number failed", zap.String("session_id", session.SessionID))
		}
	}

	c.mu.Lock()
	if c.closed {
		// Close already discarded the session and accounted for it.
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.countdown.Reset()
	snap := c.snapshotLocked(reason)
	c.mu.Unlock()

	if session != nil {
		c.metrics.TrialEvent(string(reason))
		c.log.Info("trial session finished", zap.String("session_id", session.SessionID), zap.String("reason", string(reason)))
	}
	c.publish(snap)
	if c.onTerminate != nil {
		c.onTerminate(reason)
	}
}

// ChangePersonality updates the reserved personality when a session exists.
func (c *Controller) ChangePersonality(ctx context.Context, personality string) bool {
	c.mu.Lock()
	hasSession := c.session != nil
	c.mu.Unlock()
	if !hasSession {
		return false
	}

	if !c.actions.ChangePersonality(ctx, personality) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return false
	}
	updated := *c.session
	updated.Personality = personality
	c.session = &updated
	return true
}

// ClearMemory asks the backend to forget the conversation. It is a no-op without a session.
func (c *Controller) ClearMemory(ctx context.Context) bool {
	c.mu.Lock()
	hasSession := c.session != nil
	c.mu.Unlock()
	if !hasSession {
		return false
	}
	return c.actions.ClearMemory(ctx)
}

// Close discards the session without releasing it and stops all timers.
// In-flight reservations are dropped when they settle.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	wasActive := c.session != nil
	c.closed = true
	c.generation++
	c.stopTickerLocked()
	c.session = nil
	c.countdown.Reset()
	subs := c.subscribers
	c.subscribers = make(map[int]chan Snapshot)
	c.mu.Unlock()

	if wasActive {
		c.metrics.TrialEvent(string(EventClosed))
	}
	for _, ch := range subs {
		close(ch)
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked("")
}

func (c *Controller) snapshotLocked(event Event) Snapshot {
	snap := Snapshot{
		Event:     event,
		Active:    c.countdown.Active(),
		Remaining: c.countdown.Remaining(),
		Clock:     FormatClock(c.countdown.Remaining()),
	}
	if c.session != nil {
		s := *c.session
		snap.Session = &s
	}
	return snap
}

// Subscribe streams snapshots until cancel is called or the controller closes.
// Slow subscribers miss intermediate ticks rather than blocking the countdown.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			if _, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(ch)
			}
			c.mu.Unlock()
		})
	}
}

func (c *Controller) publish(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}
