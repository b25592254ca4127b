package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mikey/llm-inbox-triage/internal/classifier"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

// contentGenerator is the part of *genai.GenerativeModel the scorer uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Scorer is an implementation of the Scorer interface using Google Gemini
type Scorer struct {
	client    *genai.Client
	model     contentGenerator
	modelName string
	logger    *zap.Logger
}

// NewScorer creates a new Gemini scorer
func NewScorer(ctx context.Context, apiKey, modelName string, maxTokens int, temperature float64, logger *zap.Logger) (*Scorer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(float32(temperature))
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"

	s := newScorer(model, modelName, logger)
	s.client = client
	return s, nil
}

func newScorer(model contentGenerator, modelName string, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{model: model, modelName: modelName, logger: logger}
}

// Close closes the Gemini client
func (s *Scorer) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Score asks the model for importance and spam scores
func (s *Scorer) Score(ctx context.Context, prompt, body string) (core.ScoreResponse, error) {
	resp, err := s.model.GenerateContent(ctx, genai.Text(classifier.ComposePrompt(prompt, body)))
	if err != nil {
		return core.ScoreResponse{}, classifyError(err)
	}

	text := responseText(resp)
	if text == "" {
		return core.ScoreResponse{}, fmt.Errorf("%w: empty response from Gemini", core.ErrMalformedResponse)
	}

	s.logger.Debug("Received Gemini response", zap.String("model", s.modelName))
	return classifier.ParseScoreResponse(text)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// classifyError marks quota and availability failures as transient
func classifyError(err error) error {
	wrapped := fmt.Errorf("failed to generate content with Gemini: %w", err)

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return core.Transient(fmt.Errorf("%w: %w", core.ErrRateLimited, wrapped))
		case gerr.Code >= 500:
			return core.Transient(wrapped)
		}
		return wrapped
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return core.Transient(fmt.Errorf("%w: %w", core.ErrRateLimited, wrapped))
		case codes.Unavailable, codes.Internal, codes.DeadlineExceeded, codes.Aborted:
			return core.Transient(wrapped)
		}
	}
	return wrapped
}
