package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one entry of a conversation. Messages are never rewritten into
// different messages: user messages are edited in place (one level of undo is
// kept in PreviousContent) and assistant messages are superseded by newer
// replies, which hides them from the active history without deleting them.
type Message struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint   `gorm:"not null;index:idx_conversation_active" json:"conversation_id"`
	Role           Role   `gorm:"type:varchar(10);not null" json:"role"`
	Content        string `gorm:"type:text;not null" json:"content"`

	Edited          bool       `gorm:"not null;default:false" json:"edited"`
	EditedAt        *time.Time `json:"edited_at"`
	PreviousContent string     `gorm:"type:text" json:"previous_content,omitempty"`

	Superseded   bool  `gorm:"not null;default:false;index:idx_conversation_active" json:"superseded"`
	ReplacedByID *uint `gorm:"index" json:"replaced_by_id,omitempty"`

	ParentUserMessageID *uint `gorm:"index" json:"parent_user_message_id,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_conversation_active" json:"created_at"`
}

// ChatMessage is the role/content pair handed to a completion backend.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func (m *Message) ChatMessage() ChatMessage {
	return ChatMessage{Role: m.Role, Content: m.Content}
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: message content cannot be empty", ErrValidation)
	}
	return content, nil
}

func (m *Message) edit(content string, now time.Time) error {
	if m.Role != RoleUser {
		return fmt.Errorf("%w: only user messages can be edited", ErrInvalidOperation)
	}
	content, err := normalizeContent(content)
	if err != nil {
		return err
	}
	m.PreviousContent = m.Content
	m.Content = content
	m.Edited = true
	m.EditedAt = &now
	return nil
}

func (m *Message) supersede(by *Message) error {
	if m.Role != RoleAssistant {
		return fmt.Errorf("%w: only assistant messages can be superseded", ErrInvalidOperation)
	}
	if by == nil || by.ID == 0 {
		return fmt.Errorf("%w: replacement message must be stored first", ErrValidation)
	}
	if by.ID == m.ID {
		return fmt.Errorf("%w: a message cannot replace itself", ErrInvalidOperation)
	}
	if by.Superseded {
		return fmt.Errorf("%w: replacement message %d is already superseded", ErrInvalidOperation, by.ID)
	}
	m.Superseded = true
	m.ReplacedByID = &by.ID
	return nil
}

// AppendMessage stores a new message at the end of conv and bumps its
// last-activity time.
func (s *Store) AppendMessage(ctx context.Context, conv *Conversation, role Role, content string, parentUserMessageID *uint) (*Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := &Message{
		ConversationID:      conv.ID,
		Role:                role,
		Content:             content,
		ParentUserMessageID: parentUserMessageID,
		CreatedAt:           now,
	}
	if err := s.conn(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if err := s.touchConversation(ctx, conv, now); err != nil {
		return nil, err
	}
	return msg, nil
}

// EditMessage replaces the content of a user message, keeping the replaced
// content as PreviousContent. Assistant replies are left untouched.
func (s *Store) EditMessage(ctx context.Context, msg *Message, content string) error {
	now := time.Now()
	edited := *msg
	if err := edited.edit(content, now); err != nil {
		return err
	}
	err := s.conn(ctx).Model(&edited).Updates(map[string]any{
		"content":          edited.Content,
		"previous_content": edited.PreviousContent,
		"edited":           true,
		"edited_at":        now,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update message %d: %w", msg.ID, err)
	}
	*msg = edited
	return s.touchConversation(ctx, &Conversation{ID: msg.ConversationID}, now)
}

// SupersedeMessage marks the assistant message old as replaced by replacement.
func (s *Store) SupersedeMessage(ctx context.Context, old, replacement *Message) error {
	superseded := *old
	if err := superseded.supersede(replacement); err != nil {
		return err
	}
	err := s.conn(ctx).Model(&superseded).Updates(map[string]any{
		"superseded":     true,
		"replaced_by_id": *superseded.ReplacedByID,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to supersede message %d: %w", old.ID, err)
	}
	*old = superseded
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id uint) (*Message, error) {
	var msg Message
	if err := s.conn(ctx).First(&msg, id).Error; err != nil {
		return nil, fmt.Errorf("message %d: %w", id, translateError(err))
	}
	return &msg, nil
}

// ActiveReplyTo returns the current assistant reply to a user message, or nil
// when the message has not been answered.
func (s *Store) ActiveReplyTo(ctx context.Context, userMessageID uint) (*Message, error) {
	var replies []Message
	err := s.conn(ctx).
		Where("parent_user_message_id = ? AND role = ? AND superseded = ?", userMessageID, RoleAssistant, false).
		Order("created_at ASC").Order("id ASC").
		Limit(1).
		Find(&replies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query replies to message %d: %w", userMessageID, err)
	}
	if len(replies) == 0 {
		return nil, nil
	}
	return &replies[0], nil
}

// DeleteMessage removes msg together with the assistant replies linked to it.
// replaced_by references pointing at removed messages are cleared.
func (s *Store) DeleteMessage(ctx context.Context, msg *Message) error {
	return s.Transaction(ctx, func(tx *Store) error {
		ids := []uint{msg.ID}
		var replyIDs []uint
		if err := tx.conn(ctx).Model(&Message{}).
			Where("parent_user_message_id = ?", msg.ID).
			Pluck("id", &replyIDs).Error; err != nil {
			return err
		}
		ids = append(ids, replyIDs...)
		return tx.deleteMessages(ctx, ids)
	})
}

func (s *Store) deleteMessages(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.conn(ctx).Model(&Message{}).
		Where("replaced_by_id IN ?", ids).
		Update("replaced_by_id", nil).Error; err != nil {
		return fmt.Errorf("failed to clear replaced_by references: %w", err)
	}
	if err := s.conn(ctx).Where("id IN ?", ids).Delete(&Message{}).Error; err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}
