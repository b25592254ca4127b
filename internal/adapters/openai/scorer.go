package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/classifier"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

const systemPrompt = "You are an email triage system. Respond only with JSON."

// chatCompleter is the part of *openai.Client the scorer uses
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Scorer is an implementation of the Scorer interface for OpenAI and
// OpenAI-compatible endpoints
type Scorer struct {
	client      chatCompleter
	modelName   string
	maxTokens   int
	temperature float32
	jsonMode    bool
	logger      *zap.Logger
}

// NewScorer creates a new OpenAI scorer. A non-empty baseURL points the
// client at an OpenAI-compatible endpoint; JSON mode is only requested from
// the official API.
func NewScorer(apiKey, baseURL, modelName string, maxTokens int, temperature float64, logger *zap.Logger) *Scorer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return newScorer(openai.NewClientWithConfig(cfg), modelName, maxTokens, temperature, baseURL == "", logger)
}

func newScorer(client chatCompleter, modelName string, maxTokens int, temperature float64, jsonMode bool, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		jsonMode:    jsonMode,
		logger:      logger,
	}
}

// Score asks the model for importance and spam scores
func (s *Scorer) Score(ctx context.Context, prompt, body string) (core.ScoreResponse, error) {
	req := openai.ChatCompletionRequest{
		Model: s.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: classifier.ComposePrompt(prompt, body),
			},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}
	if s.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return core.ScoreResponse{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return core.ScoreResponse{}, fmt.Errorf("%w: empty response from OpenAI", core.ErrMalformedResponse)
	}

	text := resp.Choices[0].Message.Content
	s.logger.Debug("Received OpenAI response",
		zap.String("model", s.modelName),
		zap.String("id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return classifier.ParseScoreResponse(text)
}

// classifyError marks throttling and server side failures as transient
func classifyError(err error) error {
	wrapped := fmt.Errorf("failed to create chat completion with OpenAI: %w", err)

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return core.Transient(fmt.Errorf("%w: %w", core.ErrRateLimited, wrapped))
	case status == http.StatusRequestTimeout, status >= 500:
		return core.Transient(wrapped)
	default:
		return wrapped
	}
}
