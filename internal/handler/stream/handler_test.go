package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/model/persona"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/identity"
	"github.com/techfala/ia-wizard/backend/internal/service/trial"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
)

const visitor = "visitor-stream"

type sseEvent struct {
	name string
	data countdownEvent
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return ev
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.data))
		}
	}
}

func setup(t *testing.T, heartbeat time.Duration) (*httptest.Server, *flow.Manager) {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == webhook.RouteReserveNumber {
			_, _ = io.WriteString(w, `{"number":"+55 11 96666-0000","sessionId":"s-9"}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(backend.Close)

	flows := flow.NewManager(flow.Deps{
		Personas:     persona.NewMemoryStore(persona.Seed()),
		Webhook:      webhook.Config{BaseURL: backend.URL, Timeout: 2 * time.Second},
		TrialSeconds: 3,
		Logger:       zap.NewNop(),
	}, time.Hour)
	t.Cleanup(flows.Close)

	h := New(flows)
	h.heartbeat = heartbeat
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithID(req.Context(), visitor)))
		})
	})
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, flows
}

func readyFlow(t *testing.T, flows *flow.Manager) *flow.Flow {
	t.Helper()
	f := flows.Get(visitor)
	require.NoError(t, f.Continue())
	require.NoError(t, f.SelectPersonality("psicologia"))
	_, err := f.UseSuggestion()
	require.NoError(t, err)
	require.NoError(t, f.ConfirmName(context.Background()))
	_, err = f.SubmitPhones(context.Background(), nil)
	require.NoError(t, err)
	return f
}

func open(t *testing.T, srv *httptest.Server) (*http.Response, *bufio.Reader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/trial/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

func TestStreamWithoutTrialConflicts(t *testing.T) {
	srv, flows := setup(t, time.Minute)
	flows.Get(visitor)

	resp, err := http.Get(srv.URL + "/trial/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStreamFollowsCountdown(t *testing.T) {
	srv, flows := setup(t, time.Minute)
	f := readyFlow(t, flows)
	_, err := f.StartTrial(context.Background())
	require.NoError(t, err)

	resp, reader := open(t, srv)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	initial := readEvent(t, reader)
	assert.Empty(t, initial.name)
	assert.Equal(t, countdownEvent{Remaining: 3, Clock: "00:03", Active: true}, initial.data)

	ctrl, err := f.Trial()
	require.NoError(t, err)
	ctrl.Tick(context.Background())

	tick := readEvent(t, reader)
	assert.Equal(t, "tick", tick.name)
	assert.Equal(t, 2, tick.data.Remaining)

	_, err = f.EndTrial(context.Background())
	require.NoError(t, err)

	ended := readEvent(t, reader)
	assert.Equal(t, "ended", ended.name)
	assert.False(t, ended.data.Active)
}

func TestStreamEndsWhenTrialUnmounts(t *testing.T) {
	srv, flows := setup(t, time.Minute)
	f := readyFlow(t, flows)

	_, reader := open(t, srv)
	initial := readEvent(t, reader)
	assert.False(t, initial.data.Active)

	require.NoError(t, f.ChangePersonality(context.Background()))

	ended := readEvent(t, reader)
	assert.Equal(t, "ended", ended.name)
	_, err := reader.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamSendsKeepalive(t *testing.T) {
	srv, flows := setup(t, 20*time.Millisecond)
	readyFlow(t, flows)

	_, reader := open(t, srv)
	readEvent(t, reader)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": keepalive\n", line)
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "started", eventName(trial.EventStarted))
	assert.Equal(t, "ended", eventName(trial.EventExpired))
	assert.Equal(t, "ended", eventName(trial.EventClosed))
	assert.Equal(t, "tick", eventName(trial.EventTick))
}
