package processor

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/utils"
)

// NotClassified is rendered in place of scores for recorded messages
const NotClassified = "not classified"

// NotePath returns the target note path for msg under notesDir, named
// "<date> <subject> (<message id>).md". The path is derived only from the
// message so reprocessing targets the same file, and the id keeps two
// messages with the same subject and day apart.
func NotePath(notesDir string, msg *core.Message, fallback time.Time) string {
	date := msg.Date
	if date.IsZero() {
		date = fallback
	}
	name := fmt.Sprintf("%s %s", date.Format("2006-01-02"), utils.SanitizeFileName(msg.Subject))
	if msg.ID != "" {
		name += " (" + utils.SanitizeFileName(msg.ID) + ")"
	}
	return filepath.Join(notesDir, name+".md")
}

// ScoreDisplay formats a final score for a note, e.g. "23/10 (boosted +20)"
func ScoreDisplay(final, boost int, status core.ClassificationStatus) string {
	if status == core.ClassificationError {
		return "error"
	}
	out := fmt.Sprintf("%d/%d", final, core.MaxScore)
	if boost != 0 {
		out += fmt.Sprintf(" (boosted %+d)", boost)
	}
	return out
}

type noteInput struct {
	accountID string
	runID     string
	msg       *core.Message
	body      string
	decision  *core.DecisionResult
	outcome   *core.ClassificationOutcome
	recorded  bool
	now       time.Time
}

// noteData builds the template context. Recorded messages carry
// NotClassified placeholders instead of scores.
func noteData(in noteInput) map[string]any {
	msg := in.msg
	date := msg.Date
	if date.IsZero() {
		date = in.now
	}

	data := map[string]any{
		"account":      in.accountID,
		"run_id":       in.runID,
		"message_id":   msg.ID,
		"subject":      msg.Subject,
		"sender":       msg.Sender,
		"domain":       msg.Domain(),
		"date":         date.Format("2006-01-02 15:04"),
		"body":         in.body,
		"processed_at": in.now.Format(time.RFC3339),
		"recorded":     in.recorded,
		"classified":   !in.recorded,
	}

	front := map[string]any{
		"title":      msg.Subject,
		"from":       msg.Sender,
		"date":       date.Format("2006-01-02"),
		"account":    in.accountID,
		"message_id": msg.ID,
	}

	if in.recorded || in.decision == nil {
		data["status"] = "recorded"
		data["importance"] = NotClassified
		data["spam"] = NotClassified
		data["tags"] = []string{}
		front["status"] = "recorded"
		front["importance"] = NotClassified
		front["spam"] = NotClassified
		data["frontmatter"] = front
		return data
	}

	d := in.decision
	tags := append([]string{}, d.Tags...)
	data["status"] = string(d.Status)
	data["importance"] = ScoreDisplay(d.FinalImportanceScore, d.ScoreBoost, d.Status)
	data["spam"] = ScoreDisplay(d.FinalSpamScore, 0, d.Status)
	data["importance_score"] = d.FinalImportanceScore
	data["spam_score"] = d.FinalSpamScore
	data["raw_importance_score"] = d.ImportanceScore
	data["score_boost"] = d.ScoreBoost
	data["exceeds_range"] = d.ExceedsRange
	data["is_important"] = d.IsImportant
	data["is_spam"] = d.IsSpam
	data["tags"] = tags

	front["status"] = string(d.Status)
	front["importance"] = d.FinalImportanceScore
	front["spam"] = d.FinalSpamScore
	front["important"] = d.IsImportant
	front["spam_flag"] = d.IsSpam
	front["tags"] = tags

	if in.outcome != nil {
		data["attempts"] = in.outcome.Attempts
		data["raw_response"] = in.outcome.RawResponse
		if in.outcome.Err != nil {
			data["classification_error"] = in.outcome.Err.Error()
		}
	}
	data["frontmatter"] = front
	return data
}
