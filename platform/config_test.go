package platform

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MESSAGE_HISTORY_LIMIT", "MESSAGE_TOKEN_BUDGET", "LLM_MODEL",
		"LLM_MAX_TOKENS", "LLM_TEMPERATURE", "LOCK_TTL"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 12, cfg.Chat.HistoryLimit)
	assert.Equal(t, 3000, cfg.Chat.TokenBudget)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 2*time.Minute, cfg.Lock.TTL)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("MESSAGE_HISTORY_LIMIT", "4")
	t.Setenv("MESSAGE_TOKEN_BUDGET", "not-a-number")
	t.Setenv("SQL_DRIVER", "sqlite")
	t.Setenv("LLM_TIMEOUT", "5s")

	cfg := LoadConfig()
	assert.Equal(t, 4, cfg.Chat.HistoryLimit)
	assert.Equal(t, 3000, cfg.Chat.TokenBudget)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
}

func TestLogFormatter(t *testing.T) {
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	entry.Level = logrus.WarnLevel
	entry.Message = "moderation check failed"
	entry.Data = logrus.Fields{"conversation": 7}

	out, err := (&LogFormatter{}).Format(entry)
	require.NoError(t, err)
	line := string(out)
	assert.True(t, strings.HasPrefix(line, "[2024-03-01 12:30:00.000] [warning] moderation check failed"))
	assert.Contains(t, line, "conversation=7")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	_, err := OpenDB(DBConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpenDBSqlite(t *testing.T) {
	db, err := OpenDB(DBConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	sqlDB.Close()
}
