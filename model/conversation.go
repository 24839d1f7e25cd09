package model

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultTitle is the placeholder title of a new conversation. Only a
	// conversation still carrying it gets a title derived from its first message.
	DefaultTitle = "New Conversation"

	titleMaxLen    = 255
	derivedLen     = 50
	ellipsisMarker = "..."
)

type Conversation struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// TitleFromContent returns the first 50 characters of content, followed by
// "..." when anything was cut off.
func TitleFromContent(content string) string {
	if utf8.RuneCountInString(content) <= derivedLen {
		return content
	}
	runes := []rune(content)
	return string(runes[:derivedLen]) + ellipsisMarker
}

func (s *Store) CreateConversation(ctx context.Context, userID uint) (*Conversation, error) {
	conv := &Conversation{
		UserID: userID,
		Title:  DefaultTitle,
	}
	if err := s.conn(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recently active first.
func (s *Store) ListConversations(ctx context.Context, userID uint) ([]Conversation, error) {
	var convs []Conversation
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (s *Store) GetConversation(ctx context.Context, id uint) (*Conversation, error) {
	var conv Conversation
	if err := s.conn(ctx).First(&conv, id).Error; err != nil {
		return nil, fmt.Errorf("conversation %d: %w", id, translateError(err))
	}
	return &conv, nil
}

// GetUserConversation loads a conversation owned by userID. Conversations of
// other users are reported as not found.
func (s *Store) GetUserConversation(ctx context.Context, id, userID uint) (*Conversation, error) {
	var conv Conversation
	if err := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).First(&conv).Error; err != nil {
		return nil, fmt.Errorf("conversation %d: %w", id, translateError(err))
	}
	return &conv, nil
}

func (s *Store) RenameConversation(ctx context.Context, conv *Conversation, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if utf8.RuneCountInString(title) > titleMaxLen {
		return fmt.Errorf("%w: title is longer than %d characters", ErrValidation, titleMaxLen)
	}
	if err := s.conn(ctx).Model(conv).Update("title", title).Error; err != nil {
		return fmt.Errorf("failed to rename conversation %d: %w", conv.ID, err)
	}
	conv.Title = title
	return nil
}

// ActiveMessages returns the non-superseded messages of a conversation in
// creation order.
func (s *Store) ActiveMessages(ctx context.Context, conversationID uint) ([]Message, error) {
	var msgs []Message
	err := s.conn(ctx).
		Where("conversation_id = ? AND superseded = ?", conversationID, false).
		Order("created_at ASC").Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages of conversation %d: %w", conversationID, err)
	}
	return msgs, nil
}

// DeriveTitle sets the title from the first active user message while the
// conversation still has the default title. It reports whether the title changed.
func (s *Store) DeriveTitle(ctx context.Context, conv *Conversation) (bool, error) {
	if conv.Title != DefaultTitle {
		return false, nil
	}

	var first []Message
	err := s.conn(ctx).
		Where("conversation_id = ? AND role = ? AND superseded = ?", conv.ID, RoleUser, false).
		Order("created_at ASC").Order("id ASC").
		Limit(1).
		Find(&first).Error
	if err != nil {
		return false, fmt.Errorf("failed to find first user message: %w", err)
	}
	if len(first) == 0 {
		return false, nil
	}

	title := TitleFromContent(first[0].Content)
	// The title guard is repeated in SQL so a concurrent rename wins.
	res := s.conn(ctx).Model(&Conversation{}).
		Where("id = ? AND title = ?", conv.ID, DefaultTitle).
		Updates(map[string]any{"title": title, "updated_at": time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update title: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	conv.Title = title
	return true, nil
}

// DeleteConversation removes a conversation and every message in it.
func (s *Store) DeleteConversation(ctx context.Context, conv *Conversation) error {
	return s.Transaction(ctx, func(tx *Store) error {
		var ids []uint
		if err := tx.conn(ctx).Model(&Message{}).
			Where("conversation_id = ?", conv.ID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if err := tx.deleteMessages(ctx, ids); err != nil {
			return err
		}
		if err := tx.conn(ctx).Delete(&Conversation{}, conv.ID).Error; err != nil {
			return fmt.Errorf("failed to delete conversation %d: %w", conv.ID, err)
		}
		return nil
	})
}

func (s *Store) touchConversation(ctx context.Context, conv *Conversation, at time.Time) error {
	err := s.conn(ctx).Model(&Conversation{}).
		Where("id = ?", conv.ID).
		UpdateColumn("updated_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to touch conversation %d: %w", conv.ID, err)
	}
	conv.UpdatedAt = at
	return nil
}
