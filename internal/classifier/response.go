package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mikey/llm-inbox-triage/internal/core"
)

// DefaultPrompt is used when neither classification.prompt nor
// classification.prompt_file is configured.
const DefaultPrompt = `You triage email for a busy person. Read the email below and rate it.
Respond with a JSON object containing:
- importance_score: integer from 0 to 10 (10 means it needs personal attention today)
- spam_score: integer from 0 to 10 (10 means certainly unsolicited bulk or phishing)

Respond only with the JSON object and nothing else.`

type scoreResponse struct {
	ImportanceScore *float64 `json:"importance_score"`
	SpamScore       *float64 `json:"spam_score"`
}

// ParseScoreResponse extracts the scores from a model reply. Replies may
// wrap the JSON object in prose or code fences. Anything that does not yield
// two integral scores wraps core.ErrMalformedResponse.
func ParseScoreResponse(raw string) (core.ScoreResponse, error) {
	out := core.ScoreResponse{Raw: raw}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return out, fmt.Errorf("%w: no JSON object in reply", core.ErrMalformedResponse)
	}

	var resp scoreResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return out, fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}
	if resp.ImportanceScore == nil || resp.SpamScore == nil {
		return out, fmt.Errorf("%w: missing importance_score or spam_score", core.ErrMalformedResponse)
	}

	importance, ok := integral(*resp.ImportanceScore)
	if !ok {
		return out, fmt.Errorf("%w: importance_score %v is not an integer", core.ErrMalformedResponse, *resp.ImportanceScore)
	}
	spam, ok := integral(*resp.SpamScore)
	if !ok {
		return out, fmt.Errorf("%w: spam_score %v is not an integer", core.ErrMalformedResponse, *resp.SpamScore)
	}

	out.ImportanceScore = importance
	out.SpamScore = spam
	return out, nil
}

func integral(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// ValidateScores checks both scores are inside MinScore..MaxScore
func ValidateScores(resp core.ScoreResponse) error {
	if resp.ImportanceScore < core.MinScore || resp.ImportanceScore > core.MaxScore {
		return fmt.Errorf("%w: importance_score=%d", core.ErrScoreOutOfRange, resp.ImportanceScore)
	}
	if resp.SpamScore < core.MinScore || resp.SpamScore > core.MaxScore {
		return fmt.Errorf("%w: spam_score=%d", core.ErrScoreOutOfRange, resp.SpamScore)
	}
	return nil
}

// FormatMessage renders the header lines of msg followed by body, as sent
// to the scorer
func FormatMessage(msg *core.Message, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", msg.Sender)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	if !msg.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", msg.Date.Format("2006-01-02 15:04"))
	}
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}

// ComposePrompt joins the instructions and the message into a single
// request text for providers without a separate system role.
func ComposePrompt(prompt, body string) string {
	return prompt + "\n\nEmail:\n" + body
}
