package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"convochat/model"
)

var (
	ErrRateLimited  = errors.New("llm: rate limited")
	ErrUnauthorized = errors.New("llm: authentication failed")
	ErrAPI          = errors.New("llm: api error")
)

// Moderation is the verdict of the moderation endpoint for one input.
type Moderation struct {
	Flagged    bool
	Categories map[string]bool
}

// LLMClient talks to an OpenAI compatible endpoint for chat completions and
// moderation.
type LLMClient struct {
	client          openai.Client
	model           string
	moderationModel string
	maxTokens       int
	temperature     float64
}

func NewLLMClient(cfg LLMConfig) (*LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	chatModel := cfg.Model
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	return &LLMClient{
		client:          openai.NewClient(opts...),
		model:           chatModel,
		moderationModel: cfg.ModerationModel,
		maxTokens:       maxTokens,
		temperature:     cfg.Temperature,
	}, nil
}

func (c *LLMClient) Model() string {
	return c.model
}

// Complete sends the history as chat messages and returns the content of the
// first choice.
func (c *LLMClient) Complete(ctx context.Context, history []model.ChatMessage) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case model.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
		TopP:        openai.Float(1.0),
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		CompletionDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", classifyError(err)
	}
	CompletionDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	Logger.Debugf("llm chat completed model=%s duration_ms=%d prompt_tokens=%d completion_tokens=%d",
		c.model, time.Since(start).Milliseconds(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrAPI)
	}
	return resp.Choices[0].Message.Content, nil
}

// Moderate classifies text with the moderation endpoint.
func (c *LLMClient) Moderate(ctx context.Context, text string) (*Moderation, error) {
	params := openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if c.moderationModel != "" {
		params.Model = openai.ModerationModel(c.moderationModel)
	}

	resp, err := c.client.Moderations.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%w: no moderation results", ErrAPI)
	}

	result := resp.Results[0]
	moderation := &Moderation{
		Flagged:    result.Flagged,
		Categories: map[string]bool{},
	}
	if result.Flagged {
		gjson.Parse(result.Categories.RawJSON()).ForEach(func(key, value gjson.Result) bool {
			if value.Bool() {
				moderation.Categories[key.String()] = true
			}
			return true
		})
	}
	return moderation, nil
}

// classifyError maps API failures onto the package error kinds. Transport
// failures count as API errors; anything else is returned unchanged.
func classifyError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		var urlErr *url.Error
		var netErr net.Error
		if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrAPI, err)
		}
		return err
	}
	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	default:
		return fmt.Errorf("%w: %v", ErrAPI, err)
	}
}
