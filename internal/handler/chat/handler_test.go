package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	chatmodel "github.com/techfala/ia-wizard/backend/internal/model/chat"
	"github.com/techfala/ia-wizard/backend/internal/model/persona"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/identity"
	"github.com/techfala/ia-wizard/backend/internal/service/trial"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
)

const visitor = "visitor-chat"

func setupRouter(t *testing.T, backendStatus int) (*chi.Mux, *flow.Manager) {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(backendStatus)
		switch r.URL.Path {
		case webhook.RouteReserveNumber:
			_, _ = io.WriteString(w, `{"number":"+55 11 97777-0000","sessionId":"s-1"}`)
		case webhook.RouteDefineMessage:
			_, _ = io.WriteString(w, `{"resposta-i.a":"Claro, vamos agendar."}`)
		default:
			_, _ = io.WriteString(w, `{}`)
		}
	}))
	t.Cleanup(backend.Close)

	flows := flow.NewManager(flow.Deps{
		Personas:     persona.NewMemoryStore(persona.Seed()),
		Webhook:      webhook.Config{BaseURL: backend.URL, Timeout: 2 * time.Second},
		TrialSeconds: trial.DefaultSeconds,
		Logger:       zap.NewNop(),
	}, time.Hour)
	t.Cleanup(flows.Close)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("X-Anonymous") != "" {
				next.ServeHTTP(w, req)
				return
			}
			next.ServeHTTP(w, req.WithContext(identity.WithID(req.Context(), visitor)))
		})
	})
	New(flows).RegisterRoutes(r)
	return r, flows
}

func completeWizard(t *testing.T, flows *flow.Manager) *flow.Flow {
	t.Helper()
	f := flows.Get(visitor)
	require.NoError(t, f.Continue())
	require.NoError(t, f.SelectPersonality("dentista"))
	_, err := f.UseSuggestion()
	require.NoError(t, err)
	require.NoError(t, f.ConfirmName(context.Background()))
	_, err = f.SubmitPhones(context.Background(), nil)
	require.NoError(t, err)
	return f
}

func serve(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestTrialRoutesRequireCompletedWizard(t *testing.T) {
	r, flows := setupRouter(t, http.StatusOK)
	flows.Get(visitor)

	assert.Equal(t, http.StatusConflict, serve(r, http.MethodPost, "/trial/start", nil).Code)
	assert.Equal(t, http.StatusConflict, serve(r, http.MethodGet, "/chat/messages", nil).Code)
	assert.Equal(t, http.StatusConflict, serve(r, http.MethodPost, "/chat/messages", map[string]string{"text": "oi"}).Code)
}

func TestMissingIdentityIsNotFound(t *testing.T) {
	r, _ := setupRouter(t, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/chat/messages", nil)
	req.Header.Set("X-Anonymous", "1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStartTrialAndChat(t *testing.T) {
	r, flows := setupRouter(t, http.StatusOK)
	f := completeWizard(t, flows)
	defer f.Runner().Wait()

	resp := serve(r, http.MethodPost, "/trial/start", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var snap trial.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.True(t, snap.Active)
	require.NotNil(t, snap.Session)
	assert.Equal(t, "+55 11 97777-0000", snap.Session.Number)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/chat/messages", map[string]string{"text": "   "}).Code)

	resp = serve(r, http.MethodPost, "/chat/messages", map[string]string{"text": "Quero marcar uma limpeza"})
	require.Equal(t, http.StatusOK, resp.Code)
	var reply chatmodel.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, chatmodel.SenderAssistant, reply.Sender)
	assert.Equal(t, "Claro, vamos agendar.", reply.Text)

	resp = serve(r, http.MethodGet, "/chat/messages", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var msgs []chatmodel.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Claro, vamos agendar.", msgs[len(msgs)-1].Text)

	resp = serve(r, http.MethodPost, "/trial/end", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.False(t, snap.Active)
}

func TestShareLimitsPhones(t *testing.T) {
	r, flows := setupRouter(t, http.StatusOK)
	f := completeWizard(t, flows)
	defer f.Runner().Wait()

	resp := serve(r, http.MethodPost, "/trial/share", map[string][]string{"phoneNumbers": {"1", "2", "3", "4"}})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = serve(r, http.MethodPost, "/trial/share", map[string][]string{"phoneNumbers": {" 11 90000-0000 "}})
	require.Equal(t, http.StatusAccepted, resp.Code)
	var out struct {
		PhoneNumbers []string `json:"phoneNumbers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"11 90000-0000"}, out.PhoneNumbers)
}

func TestPromptValidation(t *testing.T) {
	r, flows := setupRouter(t, http.StatusOK)
	flows.Get(visitor)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/chat/prompt", map[string]string{"prompt": ""}).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/chat/prompt", map[string]string{"prompt": "x", "mode": "rewrite"}).Code)

	resp := serve(r, http.MethodPost, "/chat/prompt", map[string]string{"prompt": "Seja cordial", "mode": "alteracao"})
	require.Equal(t, http.StatusOK, resp.Code)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["success"])
}

func TestPromptBackendFailureIsBadGateway(t *testing.T) {
	r, flows := setupRouter(t, http.StatusInternalServerError)
	flows.Get(visitor)

	resp := serve(r, http.MethodPost, "/chat/prompt", map[string]string{"prompt": "Seja cordial"})
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}
