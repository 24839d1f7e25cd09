package model

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "short", content: "Hello", want: "Hello"},
		{name: "exactly fifty", content: strings.Repeat("a", 50), want: strings.Repeat("a", 50)},
		{name: "fifty one", content: strings.Repeat("a", 51), want: strings.Repeat("a", 50) + "..."},
		{name: "multibyte", content: strings.Repeat("é", 60), want: strings.Repeat("é", 50) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromContent(tt.content))
		})
	}
}

func TestDeriveTitleTruncatesLongMessage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := newTestConversation(t, s, 1)
	require.Equal(t, DefaultTitle, conv.Title)

	content := "This is a very long message that should be truncated when used as title"
	_, err := s.AppendMessage(ctx, conv, RoleUser, content, nil)
	require.NoError(t, err)

	changed, err := s.DeriveTitle(ctx, conv)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 53, utf8.RuneCountInString(conv.Title))
	assert.True(t, strings.HasSuffix(conv.Title, "..."))

	stored, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.Title, stored.Title)
}

func TestDeriveTitleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := newTestConversation(t, s, 1)

	_, err := s.AppendMessage(ctx, conv, RoleUser, "First question", nil)
	require.NoError(t, err)
	changed, err := s.DeriveTitle(ctx, conv)
	require.NoError(t, err)
	require.True(t, changed)

	_, err = s.AppendMessage(ctx, conv, RoleUser, "Second question", nil)
	require.NoError(t, err)

	changed, err = s.DeriveTitle(ctx, conv)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "First question", conv.Title)

	// a stale copy still carrying the placeholder must not overwrite the title
	stale := &Conversation{ID: conv.ID, UserID: conv.UserID, Title: DefaultTitle}
	changed, err = s.DeriveTitle(ctx, stale)
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "First question", stored.Title)
}

func TestDeriveTitleKeepsCustomTitle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := newTestConversation(t, s, 1)

	require.NoError(t, s.RenameConversation(ctx, conv, "My chat"))
	_, err := s.AppendMessage(ctx, conv, RoleUser, "Hello", nil)
	require.NoError(t, err)

	changed, err := s.DeriveTitle(ctx, conv)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "My chat", conv.Title)
}

func TestDeriveTitleWithoutUserMessage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := newTestConversation(t, s, 1)

	_, err := s.AppendMessage(ctx, conv, RoleSystem, "You are a helpful assistant.", nil)
	require.NoError(t, err)

	changed, err := s.DeriveTitle(ctx, conv)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, DefaultTitle, conv.Title)
}

func TestActiveMessagesExcludesSuperseded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := newTestConversation(t, s, 1)

	user, err := s.AppendMessage(ctx, conv, RoleUser, "Hello", nil)
	require.NoError(t, err)
	reply, err := s.AppendMessage(ctx, conv, RoleAssistant, "Hi", &user.ID)
	require.NoError(t, err)
	updated, err := s.AppendMessage(ctx, conv, RoleAssistant, "Updated", &user.ID)
	require.NoError(t, err)
	require.NoError(t, s.SupersedeMessage(ctx, updated, reply))

	msgs, err := s.ActiveMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, "Hi", msgs[1].Content)
	for _, m := range msgs {
		assert.False(t, m.Superseded)
	}
}

func TestActiveMessagesOrderAndIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := newTestConversation(t, s, 1)
	other := newTestConversation(t, s, 1)

	for _, content := range []string{"one", "two", "three"} {
		_, err := s.AppendMessage(ctx, conv, RoleUser, content, nil)
		require.NoError(t, err)
	}
	_, err := s.AppendMessage(ctx, other, RoleUser, "elsewhere", nil)
	require.NoError(t, err)

	msgs, err := s.ActiveMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
	assert.Equal(t, "three", msgs[2].Content)
}

func TestRenameConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := newTestConversation(t, s, 1)

	assert.ErrorIs(t, s.RenameConversation(ctx, conv, "   "), ErrValidation)
	assert.ErrorIs(t, s.RenameConversation(ctx, conv, strings.Repeat("x", 256)), ErrValidation)
	assert.Equal(t, DefaultTitle, conv.Title)

	require.NoError(t, s.RenameConversation(ctx, conv, "  Trip planning "))
	stored, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", stored.Title)
}

func TestGetUserConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := newTestConversation(t, s, 1)

	got, err := s.GetUserConversation(ctx, conv.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = s.GetUserConversation(ctx, conv.ID, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetUserConversation(ctx, conv.ID+100, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversationsByActivity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	first := newTestConversation(t, s, 1)
	second := newTestConversation(t, s, 1)
	newTestConversation(t, s, 2)

	_, err := s.AppendMessage(ctx, first, RoleUser, "bump", nil)
	require.NoError(t, err)

	convs, err := s.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, first.ID, convs[0].ID)
	assert.Equal(t, second.ID, convs[1].ID)
}

func TestDeleteConversationCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := newTestConversation(t, s, 1)
	other := newTestConversation(t, s, 1)

	user, err := s.AppendMessage(ctx, conv, RoleUser, "Hello", nil)
	require.NoError(t, err)
	old, err := s.AppendMessage(ctx, conv, RoleAssistant, "Hi", &user.ID)
	require.NoError(t, err)
	fresh, err := s.AppendMessage(ctx, conv, RoleAssistant, "Hi again", &user.ID)
	require.NoError(t, err)
	require.NoError(t, s.SupersedeMessage(ctx, old, fresh))
	kept, err := s.AppendMessage(ctx, other, RoleUser, "Keep me", nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(ctx, conv))

	_, err = s.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	for _, id := range []uint{user.ID, old.ID, fresh.ID} {
		_, err := s.GetMessage(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	_, err = s.GetMessage(ctx, kept.ID)
	assert.NoError(t, err)
}
