package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"convochat/model"
	"convochat/platform"
)

// ErrNotConfigured is returned by send and regenerate when no completion
// backend was configured at start-up.
var ErrNotConfigured = errors.New("AI service not configured")

type ChatOptions struct {
	// HistoryLimit is the number of active messages sent with a new message.
	HistoryLimit int
	// TokenBudget caps the estimated size of every history sent to the backend.
	TokenBudget int
}

// ChatService runs the conversation operations. Writes to one conversation
// are serialised through the locker.
type ChatService struct {
	store   *model.Store
	gateway *Gateway
	locker  platform.Locker
	opts    ChatOptions
	logger  *logrus.Logger
}

func NewChatService(store *model.Store, gateway *Gateway, locker platform.Locker, opts ChatOptions) *ChatService {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 12
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = 3000
	}
	if locker == nil {
		locker = platform.NewLocalLocker()
	}
	return &ChatService{
		store:   store,
		gateway: gateway,
		locker:  locker,
		opts:    opts,
		logger:  platform.Logger,
	}
}

// ConversationDetail is a conversation with its active messages.
type ConversationDetail struct {
	Conversation *model.Conversation
	Messages     []model.Message
}

// Exchange is the result of sending a message.
type Exchange struct {
	UserMessage      *model.Message
	AssistantMessage *model.Message
	Outcome          Outcome
}

// Regeneration is the result of regenerating a reply. Superseded is nil when
// the user message had no active reply.
type Regeneration struct {
	AssistantMessage *model.Message
	Superseded       *model.Message
	Outcome          Outcome
}

// lock takes the write lock of a conversation.
func (s *ChatService) lock(ctx context.Context, conversationID uint) (func(), error) {
	start := time.Now()
	unlock, err := s.locker.Lock(ctx, fmt.Sprintf("conversation:%d", conversationID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock conversation %d: %w", conversationID, err)
	}
	platform.LockWaitDuration.Observe(time.Since(start).Seconds())
	return unlock, nil
}

func (s *ChatService) CreateConversation(ctx context.Context, userID uint) (*model.Conversation, error) {
	return s.store.CreateConversation(ctx, userID)
}

func (s *ChatService) ListConversations(ctx context.Context, userID uint) ([]model.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

func (s *ChatService) GetConversation(ctx context.Context, id, userID uint) (*ConversationDetail, error) {
	conv, err := s.store.GetUserConversation(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ActiveMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, id, userID uint) error {
	conv, err := s.store.GetUserConversation(ctx, id, userID)
	if err != nil {
		return err
	}
	unlock, err := s.lock(ctx, conv.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.DeleteConversation(ctx, conv); err != nil {
		return err
	}
	s.logger.WithField("conversation", conv.ID).Info("conversation deleted")
	return nil
}

func (s *ChatService) RenameConversation(ctx context.Context, id, userID uint, title string) (*model.Conversation, error) {
	conv, err := s.store.GetUserConversation(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.RenameConversation(ctx, conv, title); err != nil {
		return nil, err
	}
	return conv, nil
}

// SendMessage asks the gateway for a reply to content and then stores the
// user message, the derived title and the reply in one transaction. Nothing
// is written when the transaction fails.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, userID uint, content string) (*Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content cannot be empty", model.ErrValidation)
	}
	conv, err := s.store.GetUserConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, ErrNotConfigured
	}

	unlock, err := s.lock(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	active, err := s.store.ActiveMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	pending := append(active, model.Message{Role: model.RoleUser, Content: content})
	history := BudgetTrim(RecentHistory(pending, s.opts.HistoryLimit), s.opts.TokenBudget)
	reply := s.gateway.Generate(ctx, history)

	exchange := &Exchange{Outcome: reply.Outcome}
	err = s.store.Transaction(ctx, func(tx *model.Store) error {
		userMsg, err := tx.AppendMessage(ctx, conv, model.RoleUser, content, nil)
		if err != nil {
			return err
		}
		if _, err := tx.DeriveTitle(ctx, conv); err != nil {
			return err
		}
		assistantMsg, err := tx.AppendMessage(ctx, conv, model.RoleAssistant, reply.Content, &userMsg.ID)
		if err != nil {
			return err
		}
		exchange.UserMessage = userMsg
		exchange.AssistantMessage = assistantMsg
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"conversation": conv.ID,
		"message":      exchange.UserMessage.ID,
		"outcome":      reply.Outcome,
		"history":      len(history),
	}).Info("message sent")
	return exchange, nil
}

// EditMessage changes the content of one of the user's own messages. The
// replies to it are left as they are.
func (s *ChatService) EditMessage(ctx context.Context, messageID, userID uint, content string) (*model.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("%w: message %d belongs to another user", model.ErrPermissionDenied, msg.ID)
	}
	if msg.Role != model.RoleUser {
		return nil, fmt.Errorf("%w: only user messages can be edited", model.ErrInvalidOperation)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content cannot be empty", model.ErrValidation)
	}

	unlock, err := s.lock(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// reload under the lock
	var edited *model.Message
	err = s.store.Transaction(ctx, func(tx *model.Store) error {
		current, err := tx.GetMessage(ctx, msg.ID)
		if err != nil {
			return err
		}
		if err := tx.EditMessage(ctx, current, content); err != nil {
			return err
		}
		edited = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edited, nil
}

// RegenerateReply produces a new reply to a user message of the conversation
// and supersedes the reply that was active before.
func (s *ChatService) RegenerateReply(ctx context.Context, conversationID, userID, messageID uint) (*Regeneration, error) {
	conv, err := s.store.GetUserConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, ErrNotConfigured
	}

	unlock, err := s.lock(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	userMsg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if userMsg.ConversationID != conv.ID || userMsg.Role != model.RoleUser {
		return nil, fmt.Errorf("message %d: %w", messageID, model.ErrNotFound)
	}

	active, err := s.store.ActiveMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	history := BudgetTrim(HistoryUpTo(active, userMsg.ID), s.opts.TokenBudget)
	reply := s.gateway.Generate(ctx, history)

	result := &Regeneration{Outcome: reply.Outcome}
	err = s.store.Transaction(ctx, func(tx *model.Store) error {
		prior, err := tx.ActiveReplyTo(ctx, userMsg.ID)
		if err != nil {
			return err
		}
		assistantMsg, err := tx.AppendMessage(ctx, conv, model.RoleAssistant, reply.Content, &userMsg.ID)
		if err != nil {
			return err
		}
		if prior != nil {
			if err := tx.SupersedeMessage(ctx, prior, assistantMsg); err != nil {
				return err
			}
		}
		result.AssistantMessage = assistantMsg
		result.Superseded = prior
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"conversation": conv.ID,
		"message":      userMsg.ID,
		"outcome":      reply.Outcome,
	}
	if result.Superseded != nil {
		fields["superseded"] = result.Superseded.ID
	}
	s.logger.WithFields(fields).Info("reply regenerated")
	return result, nil
}
