package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techfala/ia-wizard/backend/internal/model/chat"
	"github.com/techfala/ia-wizard/backend/internal/model/persona"
)

type echoModel struct {
	seen  []*schema.Message
	reply string
}

func (m *echoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.seen = input
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *echoModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestReplyBuildsPersonaPrompt(t *testing.T) {
	fake := &echoModel{reply: "  Claro, vamos agendar!  "}
	svc, err := NewServiceWithModel(context.Background(), persona.NewMemoryStore(persona.Seed()), fake)
	require.NoError(t, err)

	reply, err := svc.Reply(context.Background(), Request{
		PersonaID: "barbearia",
		AIName:    "Bruno",
		Prompt:    "Atendemos de terça a sábado.",
		History: []chat.Message{
			{Text: "Oi", Sender: chat.SenderUser},
			{Text: "Olá!", Sender: chat.SenderAssistant},
			{Text: "Digitando...", Sender: chat.SenderAssistant, IsLoading: true},
		},
		Message: "Quero cortar o cabelo",
	})
	require.NoError(t, err)
	assert.Equal(t, "Claro, vamos agendar!", reply)

	require.Len(t, fake.seen, 4)
	assert.Equal(t, schema.System, fake.seen[0].Role)
	assert.Contains(t, fake.seen[0].Content, "barbearia")
	assert.Contains(t, fake.seen[0].Content, "Bruno")
	assert.Contains(t, fake.seen[0].Content, "terça a sábado")
	assert.Equal(t, schema.User, fake.seen[1].Role)
	assert.Equal(t, schema.Assistant, fake.seen[2].Role)
	assert.Equal(t, "Quero cortar o cabelo", fake.seen[3].Content)
}

func TestReplyRejectsEmptyContent(t *testing.T) {
	svc, err := NewServiceWithModel(context.Background(), persona.NewMemoryStore(persona.Seed()), &echoModel{reply: " "})
	require.NoError(t, err)
	_, err = svc.Reply(context.Background(), Request{PersonaID: "dentista", Message: "oi"})
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestHistoryIsCapped(t *testing.T) {
	msgs := make([]chat.Message, 0, 15)
	for i := 0; i < 15; i++ {
		msgs = append(msgs, chat.Message{Text: "m", Sender: chat.SenderUser})
	}
	assert.Len(t, buildHistoryMessages(msgs), historyLimit)
}

func TestEveryPersonaHasTemplate(t *testing.T) {
	pm := NewPersonaPromptManager()
	for _, p := range persona.Seed() {
		_, err := pm.GetPromptTemplate(p.ID)
		assert.NoError(t, err, p.ID)
	}

	unknown := persona.Persona{ID: "outro", Name: "Outro", Description: "Geral", PromptHint: "seja útil"}
	prompt := pm.BuildSystemPrompt(&unknown, "", "")
	assert.True(t, strings.HasPrefix(prompt, "Você é Assistente"))
}
