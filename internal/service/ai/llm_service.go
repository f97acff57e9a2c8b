// Package ai generates persona-flavoured replies with an eino chain over an
// Ark chat model. The mock automation backend uses it to answer chat messages.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/config"
	"github.com/techfala/ia-wizard/backend/internal/model/chat"
	"github.com/techfala/ia-wizard/backend/internal/model/persona"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
)

const historyLimit = 10

var ErrEmptyReply = errors.New("ai: model returned an empty reply")

// Request carries everything needed to answer one message.
type Request struct {
	PersonaID string
	AIName    string
	Prompt    string
	History   []chat.Message
	Message   string
}

// Service encapsulates AI-powered chat functionality
type Service struct {
	personas persona.Store
	prompts  *PersonaPromptManager
	chain    compose.Runnable[map[string]any, *schema.Message]
	log      *zap.Logger
}

// NewService builds the chain over the Ark model described by cfg.
func NewService(ctx context.Context, personas persona.Store, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, personas, chatModel)
}

// NewServiceWithModel builds the chain over any chat model.
func NewServiceWithModel(ctx context.Context, personas persona.Store, chatModel model.BaseChatModel) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		personas: personas,
		prompts:  NewPersonaPromptManager(),
		chain:    runnable,
		log:      logger.Base().With(zap.String("component", "ai")),
	}, nil
}

// Reply answers req.Message in the voice of the requested persona.
func (s *Service) Reply(ctx context.Context, req Request) (string, error) {
	p, ok := s.personas.FindByID(req.PersonaID)
	if !ok {
		p, _ = s.personas.FindByID(persona.DefaultID)
	}

	response, err := s.chain.Invoke(ctx, map[string]any{
		"system":  s.prompts.BuildSystemPrompt(&p, req.AIName, req.Prompt),
		"history": buildHistoryMessages(req.History),
		"query":   req.Message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	s.log.Debug("generated reply", zap.String("persona", p.ID), zap.Int("length", len(content)))
	return content, nil
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		if msg.IsLoading {
			continue
		}
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}
