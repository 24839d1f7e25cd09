package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convochat/model"
	"convochat/platform"
)

type fakeCompletion struct {
	mu      sync.Mutex
	content string
	err     error
	calls   int
	last    []model.ChatMessage
}

func (f *fakeCompletion) Complete(ctx context.Context, history []model.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = append([]model.ChatMessage(nil), history...)
	return f.content, f.err
}

type fakeModeration struct {
	mu      sync.Mutex
	flagged map[string]bool
	err     error
	checked []string
}

func (f *fakeModeration) Moderate(ctx context.Context, text string) (*platform.Moderation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.flagged[text] {
		return &platform.Moderation{Flagged: true, Categories: map[string]bool{"harassment": true}}, nil
	}
	return &platform.Moderation{Categories: map[string]bool{}}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestGatewayGenerate(t *testing.T) {
	completion := &fakeCompletion{content: "Hi there"}
	moderation := &fakeModeration{}
	gw := NewGateway(completion, moderation, quietLogger())

	history := []model.ChatMessage{
		{Role: model.RoleUser, Content: "Hello"},
		{Role: model.RoleAssistant, Content: "Hi"},
		{Role: model.RoleUser, Content: "How are you?"},
	}
	reply := gw.Generate(context.Background(), history)

	assert.Equal(t, "Hi there", reply.Content)
	assert.Equal(t, OutcomeCompleted, reply.Outcome)
	assert.False(t, reply.Degraded())
	assert.Equal(t, history, completion.last)
	// only user messages are moderated
	assert.Equal(t, []string{"Hello", "How are you?"}, moderation.checked)
}

func TestGatewayRejectsFlaggedHistory(t *testing.T) {
	completion := &fakeCompletion{content: "unused"}
	moderation := &fakeModeration{flagged: map[string]bool{"bad words": true}}
	gw := NewGateway(completion, moderation, quietLogger())
	rejected := testutil.ToFloat64(platform.RepliesTotal.WithLabelValues(string(OutcomeRejected)))

	reply := gw.Generate(context.Background(), []model.ChatMessage{
		{Role: model.RoleUser, Content: "bad words"},
		{Role: model.RoleAssistant, Content: "..."},
		{Role: model.RoleUser, Content: "innocent"},
	})

	assert.Equal(t, PolicyViolationReply, reply.Content)
	assert.Equal(t, OutcomeRejected, reply.Outcome)
	assert.True(t, reply.Degraded())
	assert.Zero(t, completion.calls)
	assert.Equal(t, rejected+1, testutil.ToFloat64(platform.RepliesTotal.WithLabelValues(string(OutcomeRejected))))
}

func TestGatewayModerationFailsOpen(t *testing.T) {
	completion := &fakeCompletion{content: "Hi there"}
	moderation := &fakeModeration{err: errors.New("moderation down")}
	gw := NewGateway(completion, moderation, quietLogger())

	assert.False(t, gw.ModerationCheck(context.Background(), "Hello"))

	reply := gw.Generate(context.Background(), []model.ChatMessage{{Role: model.RoleUser, Content: "Hello"}})
	assert.Equal(t, "Hi there", reply.Content)
	assert.Equal(t, OutcomeCompleted, reply.Outcome)
	assert.Equal(t, 1, completion.calls)
}

func TestGatewayWithoutModeration(t *testing.T) {
	gw := NewGateway(&fakeCompletion{content: "ok"}, nil, quietLogger())
	assert.False(t, gw.ModerationCheck(context.Background(), "anything"))
	assert.Equal(t, "ok", gw.Generate(context.Background(), []model.ChatMessage{{Role: model.RoleUser, Content: "x"}}).Content)
}

func TestGatewayDegradesOnBackendErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "rate limited", err: fmt.Errorf("%w: 429", platform.ErrRateLimited), want: HighDemandReply},
		{name: "unauthorized", err: fmt.Errorf("%w: 401", platform.ErrUnauthorized), want: MisconfiguredReply},
		{name: "api error", err: fmt.Errorf("%w: 500", platform.ErrAPI), want: TechnicalIssueReply},
		{name: "connection", err: fmt.Errorf("%w: %w", platform.ErrAPI, context.DeadlineExceeded), want: TechnicalIssueReply},
		{name: "unexpected", err: errors.New("boom"), want: UnexpectedErrorReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewGateway(&fakeCompletion{err: tt.err}, &fakeModeration{}, quietLogger())
			reply := gw.Generate(context.Background(), []model.ChatMessage{{Role: model.RoleUser, Content: "Hello"}})
			assert.Equal(t, tt.want, reply.Content)
			assert.Equal(t, OutcomeDegraded, reply.Outcome)
		})
	}
}

func TestGatewayUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	llm, err := platform.NewLLMClient(platform.LLMConfig{BaseURL: srv.URL + "/", APIKey: "test-key"})
	require.NoError(t, err)

	gw := NewGateway(llm, nil, quietLogger())
	reply := gw.Generate(context.Background(), []model.ChatMessage{{Role: model.RoleUser, Content: "Hello"}})
	assert.Equal(t, TechnicalIssueReply, reply.Content)
	assert.Equal(t, OutcomeDegraded, reply.Outcome)
}

func TestGatewayEmptyInputs(t *testing.T) {
	completion := &fakeCompletion{content: "   "}
	gw := NewGateway(completion, &fakeModeration{}, quietLogger())

	reply := gw.Generate(context.Background(), nil)
	assert.Equal(t, TechnicalIssueReply, reply.Content)
	assert.Equal(t, OutcomeDegraded, reply.Outcome)
	assert.Zero(t, completion.calls)

	reply = gw.Generate(context.Background(), []model.ChatMessage{{Role: model.RoleUser, Content: "Hello"}})
	assert.Equal(t, TechnicalIssueReply, reply.Content)
	assert.Equal(t, OutcomeDegraded, reply.Outcome)
	assert.Equal(t, 1, completion.calls)
}
