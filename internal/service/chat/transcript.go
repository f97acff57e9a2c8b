package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/techfala/ia-wizard/backend/internal/model/chat"
	"github.com/techfala/ia-wizard/backend/internal/service/webhook"
)

const (
	TypingText   = "Digitando..."
	greetingText = "Olá! Sou %s, sua assistente virtual. Como posso ajudar você hoje?"
	apologyText  = "Desculpe, ocorreu um erro ao processar sua mensagem. Verifique se o servidor está configurado corretamente."
)

var ErrEmptyMessage = errors.New("message text is required")

// Sender delivers a user message and reports the raw reply. The action runner satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, text string) (any, bool)
}

// Transcript is the in-memory conversation of one trial session.
type Transcript struct {
	sender Sender
	now    func() time.Time

	// sendMu serialises Send so each exchange settles before the next starts.
	sendMu sync.Mutex

	mu       sync.RWMutex
	nextID   int
	messages []chat.Message
}

// NewTranscript opens a conversation with the assistant's greeting.
func NewTranscript(aiName string, sender Sender) *Transcript {
	t := &Transcript{
		sender:   sender,
		now:      time.Now,
		messages: make([]chat.Message, 0, 16),
	}
	t.appendLocked(fmt.Sprintf(greetingText, aiName), chat.SenderAssistant, false)
	return t
}

func (t *Transcript) appendLocked(text string, sender chat.Sender, loading bool) chat.Message {
	t.nextID++
	msg := chat.Message{
		ID:        t.nextID,
		Text:      text,
		Sender:    sender,
		Timestamp: chat.Stamp(t.now()),
		IsLoading: loading,
	}
	t.messages = append(t.messages, msg)
	return msg
}

func (t *Transcript) append(text string, sender chat.Sender, loading bool) chat.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(text, sender, loading)
}

func (t *Transcript) removeLocked(id int) {
	for i, m := range t.messages {
		if m.ID == id {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return
		}
	}
}

// Send appends the user's message and a typing placeholder, waits for the
// backend, then replaces the placeholder with exactly one assistant message.
// A failed call yields an apology rather than an error.
func (t *Transcript) Send(ctx context.Context, text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.append(text, chat.SenderUser, false)
	placeholder := t.append(TypingText, chat.SenderAssistant, true)

	body, ok := t.sender.SendMessage(ctx, text)

	reply := apologyText
	if ok {
		reply = webhook.ExtractReply(body)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(placeholder.ID)
	return t.appendLocked(reply, chat.SenderAssistant, false), nil
}

// Messages returns a copy of the conversation.
func (t *Transcript) Messages() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	copied := make([]chat.Message, len(t.messages))
	copy(copied, t.messages)
	return copied
}
