package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/classifier"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

const anthropicVersion = "bedrock-2023-05-31"

// modelInvoker is the part of *bedrockruntime.Client the scorer uses
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Scorer is an implementation of the Scorer interface using Amazon Bedrock
type Scorer struct {
	client      modelInvoker
	modelID     string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewScorer creates a new Bedrock scorer using the default AWS credential chain
func NewScorer(ctx context.Context, region, modelID string, maxTokens int, temperature float64, logger *zap.Logger) (*Scorer, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return newScorer(bedrockruntime.NewFromConfig(awsCfg), modelID, maxTokens, temperature, logger), nil
}

func newScorer(client modelInvoker, modelID string, maxTokens int, temperature float64, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		client:      client,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

// Score asks the model for importance and spam scores
func (s *Scorer) Score(ctx context.Context, prompt, body string) (core.ScoreResponse, error) {
	payload, err := s.requestPayload(classifier.ComposePrompt(prompt, body))
	if err != nil {
		return core.ScoreResponse{}, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return core.ScoreResponse{}, classifyError(err)
	}

	text, err := s.responseText(resp.Body)
	if err != nil {
		return core.ScoreResponse{}, err
	}

	s.logger.Debug("Received Bedrock response", zap.String("model", s.modelID))
	return classifier.ParseScoreResponse(text)
}

func (s *Scorer) isAnthropicModel() bool {
	return strings.Contains(s.modelID, "anthropic.claude")
}

func (s *Scorer) isAmazonTitanModel() bool {
	return strings.HasPrefix(s.modelID, "amazon.titan")
}

func (s *Scorer) requestPayload(prompt string) ([]byte, error) {
	switch {
	case s.isAnthropicModel():
		return json.Marshal(map[string]any{
			"anthropic_version": anthropicVersion,
			"max_tokens":        s.maxTokens,
			"temperature":       s.temperature,
			"messages": []map[string]any{
				{"role": "user", "content": prompt},
			},
		})
	case s.isAmazonTitanModel():
		return json.Marshal(map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": s.maxTokens,
				"temperature":   s.temperature,
			},
		})
	default:
		return json.Marshal(map[string]any{
			"prompt":      prompt,
			"max_tokens":  s.maxTokens,
			"temperature": s.temperature,
		})
	}
}

func (s *Scorer) responseText(body []byte) (string, error) {
	switch {
	case s.isAnthropicModel():
		var resp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("%w: failed to unmarshal Claude response: %v", core.ErrMalformedResponse, err)
		}
		var b strings.Builder
		for _, c := range resp.Content {
			if c.Type == "text" {
				b.WriteString(c.Text)
			}
		}
		if b.Len() == 0 {
			return "", fmt.Errorf("%w: empty response from Claude model", core.ErrMalformedResponse)
		}
		return b.String(), nil

	case s.isAmazonTitanModel():
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("%w: failed to unmarshal Titan response: %v", core.ErrMalformedResponse, err)
		}
		if len(resp.Results) == 0 {
			return "", fmt.Errorf("%w: empty response from Titan model", core.ErrMalformedResponse)
		}
		return resp.Results[0].OutputText, nil

	default:
		var resp struct {
			Output     string `json:"output"`
			Text       string `json:"text"`
			Response   string `json:"response"`
			Generation string `json:"generation"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return string(body), nil
		}
		for _, candidate := range []string{resp.Output, resp.Text, resp.Response, resp.Generation} {
			if candidate != "" {
				return candidate, nil
			}
		}
		return string(body), nil
	}
}

var transientCodes = map[string]bool{
	"ThrottlingException":         true,
	"ServiceUnavailableException": true,
	"ModelTimeoutException":       true,
	"InternalServerException":     true,
	"ModelNotReadyException":      true,
}

// classifyError marks throttling and availability failures as transient
func classifyError(err error) error {
	wrapped := fmt.Errorf("failed to invoke Bedrock model: %w", err)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "ThrottlingException" {
			return core.Transient(fmt.Errorf("%w: %w", core.ErrRateLimited, wrapped))
		}
		if transientCodes[code] {
			return core.Transient(wrapped)
		}
	}
	return wrapped
}
