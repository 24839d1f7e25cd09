package service

import (
	"unicode/utf8"

	"convochat/model"
)

// RecentHistory keeps the last limit messages of the active history, oldest
// first. A non-positive limit keeps everything.
func RecentHistory(active []model.Message, limit int) []model.ChatMessage {
	if limit > 0 && len(active) > limit {
		active = active[len(active)-limit:]
	}
	return toChatMessages(active)
}

// HistoryUpTo returns the active history ending at and including the message
// with the given id. When that message is not active the whole active history
// is returned.
func HistoryUpTo(active []model.Message, messageID uint) []model.ChatMessage {
	for i := range active {
		if active[i].ID == messageID {
			return toChatMessages(active[:i+1])
		}
	}
	return toChatMessages(active)
}

// EstimateTokens approximates the token count of text as one token per four
// characters.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// BudgetTrim keeps the most recent entries whose estimated sizes add up to at
// most maxTokens. Inclusion stops at the first entry that does not fit, so
// the result is always a contiguous, chronologically ordered suffix.
func BudgetTrim(history []model.ChatMessage, maxTokens int) []model.ChatMessage {
	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		size := EstimateTokens(history[i].Content)
		if total+size > maxTokens {
			break
		}
		total += size
		start = i
	}
	trimmed := make([]model.ChatMessage, len(history)-start)
	copy(trimmed, history[start:])
	return trimmed
}

func toChatMessages(msgs []model.Message) []model.ChatMessage {
	out := make([]model.ChatMessage, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].ChatMessage()
	}
	return out
}
