package rules

import (
	"strings"

	"github.com/mikey/llm-inbox-triage/internal/core"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// BlacklistAction is the outcome of the pre-classification check
type BlacklistAction string

const (
	BlacklistPass   BlacklistAction = "pass"
	BlacklistDrop   BlacklistAction = "drop"
	BlacklistRecord BlacklistAction = "record"
)

// Engine evaluates blacklist and whitelist rules against message metadata.
// An Engine is owned by a single account and is not safe for concurrent use.
type Engine struct {
	fold   cases.Caser
	logger *zap.Logger
}

// NewEngine creates a new rule engine
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		fold:   cases.Fold(),
		logger: logger,
	}
}

// Matches reports whether rule applies to msg. Values are matched as
// written, surrounding whitespace included; blank values never match.
func (e *Engine) Matches(msg *core.Message, rule Rule) bool {
	if strings.TrimSpace(rule.Value) == "" {
		return false
	}
	value := e.fold.String(rule.Value)

	switch rule.Trigger {
	case TriggerSender:
		return strings.Contains(e.fold.String(msg.Sender), value)
	case TriggerSubject:
		return strings.Contains(e.fold.String(msg.Subject), value)
	case TriggerDomain:
		return e.fold.String(msg.Domain()) == value
	default:
		return false
	}
}

// EvaluateBlacklist returns the action of the first matching rule, or
// BlacklistPass when nothing matches. The matched rule is returned for logging.
func (e *Engine) EvaluateBlacklist(msg *core.Message, rules []Rule) (BlacklistAction, *Rule) {
	for i := range rules {
		if !e.Matches(msg, rules[i]) {
			continue
		}
		e.logger.Debug("Blacklist rule matched",
			zap.String("message_id", msg.ID),
			zap.Int("rule_index", i),
			zap.String("trigger", string(rules[i].Trigger)),
			zap.String("value", rules[i].Value),
			zap.String("action", string(rules[i].Action)))

		switch rules[i].Action {
		case ActionDrop:
			return BlacklistDrop, &rules[i]
		case ActionRecord:
			return BlacklistRecord, &rules[i]
		}
	}
	return BlacklistPass, nil
}

// EvaluateWhitelist applies every matching boost rule to decision and returns
// the augmented copy. Sentinel scores are never boosted; tags still apply.
func (e *Engine) EvaluateWhitelist(msg *core.Message, decision core.DecisionResult, rules []Rule) core.DecisionResult {
	out := decision
	out.Tags = append([]string(nil), decision.Tags...)

	for i, rule := range rules {
		if rule.Action != ActionBoost || !e.Matches(msg, rule) {
			continue
		}
		e.logger.Debug("Whitelist rule matched",
			zap.String("message_id", msg.ID),
			zap.Int("rule_index", i),
			zap.Int("score_boost", rule.ScoreBoost),
			zap.Strings("add_tags", rule.AddTags))

		out.AddTags(rule.AddTags...)
		if out.Status == core.ClassificationError {
			continue
		}
		out.ScoreBoost += rule.ScoreBoost
		out.FinalImportanceScore += rule.ScoreBoost
	}

	out.ExceedsRange = out.Status != core.ClassificationError &&
		(out.FinalImportanceScore > core.MaxScore || out.FinalImportanceScore < core.MinScore)
	return out
}
