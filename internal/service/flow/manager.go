package flow

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/service/identity"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
)

// Manager keeps one Flow per visitor id and expires idle ones.
type Manager struct {
	deps Deps
	ttl  time.Duration
	log  *zap.Logger

	mu    sync.Mutex
	flows map[string]*Flow
}

// NewManager creates a manager. A non-positive ttl disables expiry.
func NewManager(deps Deps, ttl time.Duration) *Manager {
	return &Manager{
		deps:  deps,
		ttl:   ttl,
		log:   logger.Or(deps.Logger).With(zap.String("component", "flow")),
		flows: make(map[string]*Flow),
	}
}

// Get returns the visitor's flow, creating it on first use.
func (m *Manager) Get(visitorID string) *Flow {
	visitorID = strings.TrimSpace(visitorID)

	m.mu.Lock()
	f, ok := m.flows[visitorID]
	if !ok {
		f = newFlow(visitorID, m.deps)
		m.flows[visitorID] = f
	}
	m.mu.Unlock()

	if !ok {
		m.deps.Metrics.FlowOpened()
		m.log.Debug("flow opened", zap.String("visitor", visitorID))
	}
	f.touch()
	return f
}

// FromContext returns the flow of the visitor resolved into ctx.
func (m *Manager) FromContext(ctx context.Context) (*Flow, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return nil, ErrNotFound
	}
	return m.Get(id), nil
}

// Lookup returns an existing flow without creating one.
func (m *Manager) Lookup(visitorID string) (*Flow, error) {
	m.mu.Lock()
	f, ok := m.flows[strings.TrimSpace(visitorID)]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	f.touch()
	return f, nil
}

// Len reports how many flows are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flows)
}

// Range calls fn for every live flow.
func (m *Manager) Range(fn func(*Flow)) {
	m.mu.Lock()
	flows := make([]*Flow, 0, len(m.flows))
	for _, f := range m.flows {
		flows = append(flows, f)
	}
	m.mu.Unlock()
	for _, f := range flows {
		fn(f)
	}
}

// Remove closes and forgets a visitor's flow.
func (m *Manager) Remove(visitorID string) bool {
	m.mu.Lock()
	f, ok := m.flows[visitorID]
	if ok {
		delete(m.flows, visitorID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	f.Close()
	m.deps.Metrics.FlowClosed()
	return true
}

// StartJanitor expires idle flows until ctx is cancelled.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ExpireIdle(time.Now())
			}
		}
	}()
}

// ExpireIdle closes flows untouched since now minus ttl and returns how many.
func (m *Manager) ExpireIdle(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-m.ttl)

	m.mu.Lock()
	var expired []*Flow
	for id, f := range m.flows {
		if f.idleSince().Before(cutoff) {
			expired = append(expired, f)
			delete(m.flows, id)
		}
	}
	m.mu.Unlock()

	for _, f := range expired {
		f.Close()
		m.deps.Metrics.FlowClosed()
		m.log.Info("flow expired", zap.String("visitor", f.ID()))
	}
	return len(expired)
}

// Close closes every flow.
func (m *Manager) Close() {
	m.mu.Lock()
	flows := m.flows
	m.flows = make(map[string]*Flow)
	m.mu.Unlock()

	for _, f := range flows {
		f.Close()
		m.deps.Metrics.FlowClosed()
	}
}
