package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to ":memory:" is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, InstallDB(db))
	return NewStore(db)
}

func newTestConversation(t *testing.T, s *Store, userID uint) *Conversation {
	t.Helper()
	conv, err := s.CreateConversation(context.Background(), userID)
	require.NoError(t, err)
	return conv
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := newTestConversation(t, s, 1)

	err := s.Transaction(ctx, func(tx *Store) error {
		if _, err := tx.AppendMessage(ctx, conv, RoleUser, "Hello", nil); err != nil {
			return err
		}
		_, err := tx.AppendMessage(ctx, conv, RoleUser, "   ", nil)
		return err
	})
	require.ErrorIs(t, err, ErrValidation)

	msgs, err := s.ActiveMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}
