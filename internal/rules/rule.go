package rules

import (
	"fmt"
	"strings"
	"unicode"
)

// Trigger selects the message field a rule looks at
type Trigger string

const (
	TriggerSender  Trigger = "sender"
	TriggerSubject Trigger = "subject"
	TriggerDomain  Trigger = "domain"
)

// Action is what a matching rule does
type Action string

const (
	ActionDrop   Action = "drop"
	ActionRecord Action = "record"
	ActionBoost  Action = "boost"
)

// Kind names a rule list
type Kind string

const (
	KindBlacklist Kind = "blacklist"
	KindWhitelist Kind = "whitelist"
)

// Rule is one blacklist or whitelist entry
type Rule struct {
	Trigger    Trigger  `yaml:"trigger" mapstructure:"trigger" json:"trigger"`
	Value      string   `yaml:"value" mapstructure:"value" json:"value"`
	Action     Action   `yaml:"action" mapstructure:"action" json:"action"`
	ScoreBoost int      `yaml:"score_boost,omitempty" mapstructure:"score_boost" json:"score_boost,omitempty"`
	AddTags    []string `yaml:"add_tags,omitempty" mapstructure:"add_tags" json:"add_tags,omitempty"`
}

// Violation describes one problem with one rule
type Violation struct {
	Index   int
	Field   string
	Message string
}

// DefinitionError lists every malformed rule of a rule document
type DefinitionError struct {
	Kind       Kind
	Source     string
	Violations []Violation
}

func (e *DefinitionError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("rule %d: %s: %s", v.Index, v.Field, v.Message))
	}
	src := ""
	if e.Source != "" {
		src = " (" + e.Source + ")"
	}
	return fmt.Sprintf("invalid %s rules%s: %s", e.Kind, src, strings.Join(parts, "; "))
}

// Validate checks every rule of a list and returns a *DefinitionError
// naming all violations, or nil.
func Validate(kind Kind, source string, list []Rule) error {
	var violations []Violation
	add := func(i int, field, msg string) {
		violations = append(violations, Violation{Index: i, Field: field, Message: msg})
	}

	for i, r := range list {
		switch r.Trigger {
		case TriggerSender, TriggerSubject, TriggerDomain:
		case "":
			add(i, "trigger", "is required")
		default:
			add(i, "trigger", fmt.Sprintf("unknown trigger %q (want sender, subject or domain)", r.Trigger))
		}

		if strings.TrimSpace(r.Value) == "" {
			add(i, "value", "must not be empty")
		} else if r.Trigger == TriggerDomain && strings.ContainsFunc(r.Value, unicode.IsSpace) {
			add(i, "value", fmt.Sprintf("domain %q must not contain whitespace", r.Value))
		}

		switch kind {
		case KindBlacklist:
			if r.Action != ActionDrop && r.Action != ActionRecord {
				add(i, "action", fmt.Sprintf("blacklist action must be drop or record, got %q", r.Action))
			}
		case KindWhitelist:
			if r.Action != ActionBoost {
				add(i, "action", fmt.Sprintf("whitelist action must be boost, got %q", r.Action))
				continue
			}
			if r.ScoreBoost == 0 {
				add(i, "score_boost", "is required for boost rules")
			}
			if len(r.AddTags) == 0 {
				add(i, "add_tags", "is required for boost rules")
			}
			for _, tag := range r.AddTags {
				if strings.TrimSpace(tag) == "" {
					add(i, "add_tags", "must not contain empty tags")
					break
				}
			}
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &DefinitionError{Kind: kind, Source: source, Violations: violations}
}
