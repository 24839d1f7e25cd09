package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"convochat/model"
	"convochat/platform"
)

// Fixed assistant replies used instead of a backend completion.
const (
	PolicyViolationReply = "I'm sorry, but I can't respond to that message as it violates our usage policies. Please rephrase your message."
	HighDemandReply      = "I'm currently experiencing high demand. Please try again in a moment."
	MisconfiguredReply   = "There's an issue with the AI service configuration. Please contact support."
	TechnicalIssueReply  = "I'm experiencing technical difficulties. Please try again later."
	UnexpectedErrorReply = "An unexpected error occurred. Please try again."
)

// CompletionBackend produces the next assistant message for a history.
type CompletionBackend interface {
	Complete(ctx context.Context, history []model.ChatMessage) (string, error)
}

// ModerationBackend classifies a piece of user text.
type ModerationBackend interface {
	Moderate(ctx context.Context, text string) (*platform.Moderation, error)
}

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomeRejected means a user message in the history was flagged.
	OutcomeRejected Outcome = "rejected"
	// OutcomeDegraded means the backend failed and a fixed reply was used.
	OutcomeDegraded Outcome = "degraded"
)

// Reply is always usable assistant content. Outcome tells callers whether it
// came from the backend.
type Reply struct {
	Content string
	Outcome Outcome
}

func (r Reply) Degraded() bool {
	return r.Outcome != OutcomeCompleted
}

// Gateway wraps the completion and moderation backends. Generate never
// returns an error: backend trouble becomes a fixed assistant reply.
type Gateway struct {
	completion CompletionBackend
	moderation ModerationBackend
	logger     *logrus.Logger
}

func NewGateway(completion CompletionBackend, moderation ModerationBackend, logger *logrus.Logger) *Gateway {
	if logger == nil {
		logger = platform.Logger
	}
	return &Gateway{
		completion: completion,
		moderation: moderation,
		logger:     logger,
	}
}

// ModerationCheck reports whether text is flagged. Moderation failures are
// logged and treated as not flagged.
func (g *Gateway) ModerationCheck(ctx context.Context, text string) bool {
	if g.moderation == nil {
		return false
	}
	result, err := g.moderation.Moderate(ctx, text)
	if err != nil {
		g.logger.Errorf("Moderation check failed: %s", err)
		return false
	}
	if result == nil || !result.Flagged {
		return false
	}
	g.logger.Warnf("Message flagged by moderation: %s", flaggedCategories(result))
	return true
}

func (g *Gateway) Generate(ctx context.Context, history []model.ChatMessage) Reply {
	reply := g.generate(ctx, history)
	platform.RepliesTotal.WithLabelValues(string(reply.Outcome)).Inc()
	return reply
}

func (g *Gateway) generate(ctx context.Context, history []model.ChatMessage) Reply {
	for _, m := range history {
		if m.Role == model.RoleUser && g.ModerationCheck(ctx, m.Content) {
			return Reply{Content: PolicyViolationReply, Outcome: OutcomeRejected}
		}
	}

	if len(history) == 0 {
		g.logger.Warnf("Completion skipped: history is empty after trimming")
		return Reply{Content: TechnicalIssueReply, Outcome: OutcomeDegraded}
	}

	content, err := g.completion.Complete(ctx, history)
	if err != nil {
		return g.degrade(err)
	}
	if strings.TrimSpace(content) == "" {
		g.logger.Errorf("LLM returned an empty completion")
		return Reply{Content: TechnicalIssueReply, Outcome: OutcomeDegraded}
	}
	return Reply{Content: content, Outcome: OutcomeCompleted}
}

func (g *Gateway) degrade(err error) Reply {
	var content string
	switch {
	case errors.Is(err, platform.ErrRateLimited):
		g.logger.Errorf("LLM rate limit exceeded: %s", err)
		content = HighDemandReply
	case errors.Is(err, platform.ErrUnauthorized):
		g.logger.Errorf("LLM authentication failed: %s", err)
		content = MisconfiguredReply
	case errors.Is(err, platform.ErrAPI):
		g.logger.Errorf("LLM API error: %s", err)
		content = TechnicalIssueReply
	default:
		g.logger.Errorf("Unexpected error in LLM service: %s", err)
		content = UnexpectedErrorReply
	}
	return Reply{Content: content, Outcome: OutcomeDegraded}
}

func flaggedCategories(m *platform.Moderation) string {
	names := make([]string, 0, len(m.Categories))
	for name, flagged := range m.Categories {
		if flagged {
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}
