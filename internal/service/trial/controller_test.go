package trial

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techfala/ia-wizard/backend/internal/observability"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
)

type fakeActions struct {
	mu          sync.Mutex
	failReserve bool
	releases    []string
	changes     []string
	clears      int

	// releasing is signalled and releaseGate awaited inside ReleaseNumber when set.
	releasing   chan struct{}
	releaseGate chan struct{}
}

func (f *fakeActions) ReserveNumber(_ context.Context, personality string) *webhook.ReservedSession {
	if f.failReserve {
		return nil
	}
	return &webhook.ReservedSession{Number: "+55 11 99999-9999", SessionID: "sess-1", Personality: personality}
}

func (f *fakeActions) ReleaseNumber(_ context.Context, sessionID string) bool {
	if f.releaseGate != nil {
		close(f.releasing)
		<-f.releaseGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases = append(f.releases, sessionID)
	return true
}

func (f *fakeActions) ChangePersonality(_ context.Context, p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, p)
	return true
}

func (f *fakeActions) ClearMemory(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return true
}

func (f *fakeActions) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.releases)
}

func manualController(actions Actions, opts ...Option) *Controller {
	return NewController(actions, append([]Option{WithTickInterval(0)}, opts...)...)
}

func TestStartActivatesCountdown(t *testing.T) {
	c := manualController(&fakeActions{})
	snap, err := c.Start(context.Background(), "dentista")
	require.NoError(t, err)

	assert.True(t, snap.Active)
	assert.Equal(t, 900, snap.Remaining)
	assert.Equal(t, "15:00", snap.Clock)
	require.NotNil(t, snap.Session)
	assert.Equal(t, "sess-1", snap.Session.SessionID)

	_, err = c.Start(context.Background(), "dentista")
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestStartFailureStaysInactive(t *testing.T) {
	actions := &fakeActions{failReserve: true}
	c := manualController(actions)

	snap, err := c.Start(context.Background(), "dentista")
	assert.ErrorIs(t, err, ErrReservationFailed)
	assert.False(t, snap.Active)
	assert.Nil(t, snap.Session)

	actions.failReserve = false
	_, err = c.Start(context.Background(), "dentista")
	require.NoError(t, err)
}

func TestTicksDecrement(t *testing.T) {
	c := manualController(&fakeActions{})
	_, err := c.Start(context.Background(), "barbearia")
	require.NoError(t, err)

	for i := 0; i < 65; i++ {
		c.Tick(context.Background())
	}
	snap := c.Snapshot()
	assert.Equal(t, 835, snap.Remaining)
	assert.Equal(t, "13:55", snap.Clock)
	assert.True(t, snap.Active)
}

func TestExpiryTerminatesExactlyOnce(t *testing.T) {
	actions := &fakeActions{}
	var events []Event
	c := manualController(actions, WithDuration(3), OnTerminate(func(e Event) { events = append(events, e) }))
	_, err := c.Start(context.Background(), "psicologia")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		c.Tick(context.Background())
	}

	snap := c.Snapshot()
	assert.False(t, snap.Active)
	assert.Equal(t, 3, snap.Remaining)
	assert.Nil(t, snap.Session)
	assert.Equal(t, 1, actions.releaseCount())
	assert.Equal(t, []Event{EventExpired}, events)
}

func TestEndReleasesAndResets(t *testing.T) {
	actions := &fakeActions{}
	c := manualController(actions)
	_, err := c.Start(context.Background(), "dentista")
	require.NoError(t, err)
	c.Tick(context.Background())

	snap := c.End(context.Background())
	assert.False(t, snap.Active)
	assert.Equal(t, 900, snap.Remaining)
	assert.Nil(t, snap.Session)
	assert.Equal(t, []string{"sess-1"}, actions.releases)

	c.End(context.Background())
	assert.Equal(t, 1, actions.releaseCount())
}

func TestChangePersonalityUpdatesReservation(t *testing.T) {
	actions := &fakeActions{}
	c := manualController(actions)

	assert.False(t, c.ChangePersonality(context.Background(), "barbearia"))
	assert.Empty(t, actions.changes)

	_, err := c.Start(context.Background(), "dentista")
	require.NoError(t, err)
	assert.True(t, c.ChangePersonality(context.Background(), "barbearia"))
	assert.Equal(t, "barbearia", c.Snapshot().Session.Personality)
}

func TestClearMemoryRequiresSession(t *testing.T) {
	actions := &fakeActions{}
	c := manualController(actions)
	assert.False(t, c.ClearMemory(context.Background()))

	_, err := c.Start(context.Background(), "dentista")
	require.NoError(t, err)
	assert.True(t, c.ClearMemory(context.Background()))
	assert.Equal(t, 1, actions.clears)
}

func TestCloseDiscardsWithoutRelease(t *testing.T) {
	actions := &fakeActions{}
	c := manualController(actions)
	_, err := c.Start(context.Background(), "dentista")
	require.NoError(t, err)

	updates, cancel := c.Subscribe()
	defer cancel()

	c.Close()
	assert.Equal(t, 0, actions.releaseCount())
	assert.False(t, c.Snapshot().Active)

	_, open := <-updates
	assert.False(t, open)

	_, err = c.Start(context.Background(), "dentista")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseDuringReleaseCountsSessionOnce(t *testing.T) {
	actions := &fakeActions{releasing: make(chan struct{}), releaseGate: make(chan struct{})}
	metrics := observability.NewMetrics("test")
	terminated := 0
	c := manualController(actions, WithMetrics(metrics), OnTerminate(func(Event) { terminated++ }))

	_, err := c.Start(context.Background(), "dentista")
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ActiveTrials))

	updates, cancel := c.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.End(context.Background())
	}()
	<-actions.releasing
	c.Close()
	close(actions.releaseGate)
	<-done

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveTrials))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TrialEvents.WithLabelValues("closed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.TrialEvents.WithLabelValues("ended")))
	assert.Zero(t, terminated)
	_, open := <-updates
	assert.False(t, open)
}

func TestWallClockTickerExpires(t *testing.T) {
	actions := &fakeActions{}
	c := NewController(actions, WithDuration(2), WithTickInterval(5*time.Millisecond))
	defer c.Close()

	updates, cancel := c.Subscribe()
	defer cancel()

	_, err := c.Start(context.Background(), "dentista")
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Event == EventExpired {
				assert.False(t, snap.Active)
				assert.Equal(t, 1, actions.releaseCount())
				return
			}
		case <-deadline:
			t.Fatal("countdown did not expire")
		}
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "15:00", FormatClock(900))
	assert.Equal(t, "00:59", FormatClock(59))
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "00:00", FormatClock(-3))
}

func TestCountdownTickAfterExpiryIsNoop(t *testing.T) {
	cd := NewCountdown(1)
	assert.False(t, cd.Tick())
	cd.Start()
	assert.True(t, cd.Tick())
	assert.False(t, cd.Tick())
	assert.Equal(t, 0, cd.Remaining())
	cd.Reset()
	assert.Equal(t, 1, cd.Remaining())
	assert.False(t, cd.Active())
}
