package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/llm-inbox-triage/internal/core"
)

type fakeCompleter struct {
	resp openai.ChatCompletionResponse
	err  error
	req  openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func reply(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: text}}},
	}
}

func TestScore(t *testing.T) {
	fc := &fakeCompleter{resp: reply(`{"importance_score": 8, "spam_score": 1}`)}
	s := newScorer(fc, "gpt-4o-mini", 200, 0.2, true, nil)

	resp, err := s.Score(context.Background(), "rate it", "From: a@b\n\nhello")
	require.NoError(t, err)
	assert.Equal(t, 8, resp.ImportanceScore)
	assert.Equal(t, 1, resp.SpamScore)

	require.Len(t, fc.req.Messages, 2)
	assert.Contains(t, fc.req.Messages[1].Content, "rate it")
	assert.Contains(t, fc.req.Messages[1].Content, "hello")
	require.NotNil(t, fc.req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, fc.req.ResponseFormat.Type)
}

func TestScoreCompatibleEndpointSkipsJSONMode(t *testing.T) {
	fc := &fakeCompleter{resp: reply(`{"importance_score": 1, "spam_score": 1}`)}
	_, err := newScorer(fc, "llama3", 200, 0.2, false, nil).Score(context.Background(), "p", "b")
	require.NoError(t, err)
	assert.Nil(t, fc.req.ResponseFormat)
}

func TestScoreEmptyChoicesIsMalformed(t *testing.T) {
	fc := &fakeCompleter{}
	_, err := newScorer(fc, "m", 1, 0, true, nil).Score(context.Background(), "p", "b")
	assert.ErrorIs(t, err, core.ErrMalformedResponse)
	assert.True(t, core.IsTransient(err))
}

func TestScoreErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
		limited   bool
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true, true},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, true, false},
		{"request error", &openai.RequestError{HTTPStatusCode: http.StatusServiceUnavailable, Err: errors.New("unavailable")}, true, false},
		{"bad key", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, false, false},
		{"unknown", errors.New("boom"), false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := &fakeCompleter{err: tc.err}
			_, err := newScorer(fc, "m", 1, 0, true, nil).Score(context.Background(), "p", "b")
			require.Error(t, err)
			assert.Equal(t, tc.transient, core.IsTransient(err))
			assert.Equal(t, tc.limited, errors.Is(err, core.ErrRateLimited))
		})
	}
}
