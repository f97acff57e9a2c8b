package actions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techfala/ia-wizard/backend/internal/observability"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
)

type fakeClient struct {
	mu sync.Mutex

	reserveErr error
	sendErr    error
	phoneErr   error
	sendReply  any

	// block, when set, holds SendMessage until released.
	block   chan struct{}
	entered chan struct{}

	phones [][]string
}

func (f *fakeClient) ReserveNumber(_ context.Context, personality string) (webhook.ReservedSession, error) {
	if f.reserveErr != nil {
		return webhook.ReservedSession{}, f.reserveErr
	}
	return webhook.ReservedSession{Number: "+55 11 90000-0000", SessionID: "s-1", Personality: personality}, nil
}

func (f *fakeClient) SendMessage(ctx context.Context, _ string) (any, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.sendReply, f.sendErr
}

func (f *fakeClient) SendPrompt(context.Context, string, webhook.PromptMode) (any, error) {
	return map[string]any{"ok": true}, nil
}

func (f *fakeClient) DefinePhone(ctx context.Context, phones []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.phones = append(f.phones, phones)
	f.mu.Unlock()
	return f.phoneErr
}

func (f *fakeClient) ChangePersonality(context.Context, string) error { return nil }
func (f *fakeClient) DefineName(context.Context, string) error        { return nil }
func (f *fakeClient) ClearMemory(context.Context) error               { return nil }
func (f *fakeClient) ReleaseNumber(context.Context, string) error     { return nil }

func collect() (*[]Notification, Notifier) {
	var got []Notification
	var mu sync.Mutex
	return &got, NotifierFunc(func(n Notification) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})
}

func TestReserveNumberSuccessNotifies(t *testing.T) {
	got, notifier := collect()
	r := NewRunner(&fakeClient{}, notifier)

	session := r.ReserveNumber(context.Background(), "dentista")
	require.NotNil(t, session)
	assert.Equal(t, "dentista", session.Personality)
	assert.Equal(t, State{}, r.State(KindReserveNumber))
	require.Len(t, *got, 1)
	assert.Equal(t, "Número Reservado", (*got)[0].Title)
	assert.Equal(t, "Número +55 11 90000-0000 reservado com sucesso!", (*got)[0].Description)
}

func TestReserveNumberFailureReturnsNil(t *testing.T) {
	got, notifier := collect()
	r := NewRunner(&fakeClient{reserveErr: &webhook.NetworkError{Route: webhook.RouteReserveNumber, Status: 503}}, notifier)

	session := r.ReserveNumber(context.Background(), "dentista")
	assert.Nil(t, session)
	st := r.State(KindReserveNumber)
	assert.False(t, st.Pending)
	assert.Contains(t, st.Error, "503")
	require.Len(t, *got, 1)
	assert.Equal(t, VariantDestructive, (*got)[0].Variant)
	assert.Equal(t, "Erro na Conexão", (*got)[0].Title)
}

func TestSendMessageFailure(t *testing.T) {
	got, notifier := collect()
	r := NewRunner(&fakeClient{sendErr: errors.New("connection refused")}, notifier)

	body, ok := r.SendMessage(context.Background(), "oi")
	assert.False(t, ok)
	assert.Nil(t, body)
	assert.Equal(t, "connection refused", r.State(KindSendMessage).Error)
	require.Len(t, *got, 1)
	assert.Equal(t, "Erro ao Enviar Mensagem", (*got)[0].Title)
}

func TestErrorClearedOnNextCall(t *testing.T) {
	client := &fakeClient{sendErr: errors.New("boom")}
	r := NewRunner(client, nil)

	_, ok := r.SendMessage(context.Background(), "a")
	require.False(t, ok)
	require.NotEmpty(t, r.State(KindSendMessage).Error)

	client.sendErr = nil
	client.sendReply = map[string]any{"response": "ok"}
	_, ok = r.SendMessage(context.Background(), "b")
	require.True(t, ok)
	assert.Empty(t, r.State(KindSendMessage).Error)
}

func TestPendingIsTrackedPerKind(t *testing.T) {
	client := &fakeClient{block: make(chan struct{}), entered: make(chan struct{})}
	r := NewRunner(client, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.SendMessage(context.Background(), "slow")
	}()
	<-client.entered

	assert.True(t, r.State(KindSendMessage).Pending)
	assert.True(t, r.IsLoading())

	// A different kind settling does not clear the in-flight send.
	require.True(t, r.ChangePersonality(context.Background(), "barbearia"))
	assert.True(t, r.State(KindSendMessage).Pending)
	assert.True(t, r.IsLoading())

	close(client.block)
	<-done
	assert.False(t, r.IsLoading())
}

func TestChangePersonalityNotifies(t *testing.T) {
	got, notifier := collect()
	r := NewRunner(&fakeClient{}, notifier)

	require.True(t, r.ChangePersonality(context.Background(), "psicologia"))
	require.Len(t, *got, 1)
	assert.Equal(t, "Personalidade Alterada", (*got)[0].Title)
}

func TestDetachedDefinePhoneSurvivesCancellation(t *testing.T) {
	client := &fakeClient{}
	metrics := observability.NewMetrics("test")
	r := NewRunner(client, nil, WithMetrics(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	phones := []string{"11 99999-0000"}
	r.DefinePhoneDetached(ctx, phones)
	cancel()
	phones[0] = "mutated"
	r.Wait()

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.phones, 1)
	assert.Equal(t, []string{"11 99999-0000"}, client.phones[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActionResults.WithLabelValues("define_phone", "success")))
}

func TestDetachedFailureIsRecorded(t *testing.T) {
	r := NewRunner(&fakeClient{phoneErr: errors.New("down")}, nil)
	r.DefinePhoneDetached(context.Background(), []string{"1"})
	r.Wait()

	assert.Equal(t, "down", r.State(KindDefinePhone).Error)
}

func TestQueueDrainAndLimit(t *testing.T) {
	q := NewQueue(2)
	q.Notify(Notification{Title: "a"})
	q.Notify(Notification{Title: "b"})
	q.Notify(Notification{Title: "c"})

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Title)
	assert.Equal(t, "c", got[1].Title)
	assert.Empty(t, q.Drain())
}
