package voice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/model/persona"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/identity"
	"github.com/techfala/ia-wizard/backend/internal/service/voice"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
)

const visitor = "visitor-voice"

func setup(t *testing.T) (*httptest.Server, *flow.Manager) {
	t.Helper()
	flows := flow.NewManager(flow.Deps{
		Personas: persona.NewMemoryStore(persona.Seed()),
		Webhook:  webhook.Config{BaseURL: "http://127.0.0.1:1"},
		Logger:   zap.NewNop(),
	}, time.Hour)
	t.Cleanup(flows.Close)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithID(req.Context(), visitor)))
		})
	})
	New(flows, voice.Config{Bars: 4, FFTSize: 32, MaxBytes: 16}, nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, flows
}

func postView(t *testing.T, url string) (int, voice.PersonalizeView) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var view voice.PersonalizeView
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	}
	return resp.StatusCode, view
}

func TestPersonalizeStartAndFinish(t *testing.T) {
	srv, _ := setup(t)

	code, view := postView(t, srv.URL+"/personalize/start")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, voice.StepRecording, view.Step)

	code, _ = postView(t, srv.URL+"/personalize/start")
	assert.Equal(t, http.StatusConflict, code)

	code, view = postView(t, srv.URL+"/personalize/finish")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, voice.StepIntro, view.Step)
	assert.Zero(t, view.Progress)
}

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, func() map[string]any) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/voice/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	read := func() map[string]any {
		var msg map[string]any
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}
	return conn, read
}

func TestRecordingLevelsAndAbort(t *testing.T) {
	srv, _ := setup(t)
	conn, read := dial(t, srv)

	first := read()
	assert.Equal(t, "permission_request", first["type"])
	assert.Equal(t, float64(4), first["data"].(map[string]any)["bars"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, "pong", read()["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "permission", "data": map[string]bool{"granted": true}}))
	read()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "start"}))
	assert.Equal(t, "recording", read()["type"])

	samples := make([]int16, 32)
	for i := range samples {
		samples[i] = 12000
		if i%2 == 1 {
			samples[i] = -12000
		}
	}
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "pcm", "data": map[string]any{"samples": samples}}))
	msg := read()
	require.Equal(t, "levels", msg["type"])
	assert.Len(t, msg["data"].(map[string]any)["levels"], 4)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "abort"}))
	for {
		msg = read()
		if msg["type"] == "aborted" {
			break
		}
	}
	for _, l := range msg["data"].(map[string]any)["levels"].([]any) {
		assert.Zero(t, l)
	}
}

func TestOversizedClipAbortsRecording(t *testing.T) {
	srv, _ := setup(t)
	conn, read := dial(t, srv)
	read()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "permission", "data": map[string]bool{"granted": true}}))
	read()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "start"}))
	read()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("0123456789abcdefXYZ")))
	for {
		msg := read()
		if msg["type"] == "error" {
			assert.Contains(t, msg["data"].(map[string]any)["message"], "size limit")
			break
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "stop"}))
	for {
		msg := read()
		if msg["type"] == "error" {
			assert.Contains(t, msg["data"].(map[string]any)["message"], "not recording")
			break
		}
	}
}

func TestUnknownMessageType(t *testing.T) {
	srv, _ := setup(t)
	conn, read := dial(t, srv)
	read()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "dance"}))
	msg := read()
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "unknown message type", msg["data"].(map[string]any)["message"])
}
