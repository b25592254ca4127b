package config

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// FieldType is the primitive type a config field must have
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeStringList
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "integer"
	case TypeFloat:
		return "number"
	case TypeBool:
		return "boolean"
	case TypeStringList:
		return "list of strings"
	default:
		return "unknown"
	}
}

// Field declares one key of a section
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	Default  any
	Min      *float64
	Max      *float64
	NonEmpty bool
	Enum     []string
}

// Section declares one top-level mapping
type Section struct {
	Name     string
	Required bool
	Fields   []Field
}

func bound(v float64) *float64 { return &v }

// Schema is the fixed layout every merged account document must satisfy
var Schema = []Section{
	{
		Name:     "imap",
		Required: true,
		Fields: []Field{
			{Name: "server", Type: TypeString, Required: true, NonEmpty: true},
			{Name: "port", Type: TypeInt, Default: 993, Min: bound(1), Max: bound(65535)},
			{Name: "username", Type: TypeString, Required: true, NonEmpty: true},
			{Name: "password_env", Type: TypeString, Required: true, NonEmpty: true},
			{Name: "use_tls", Type: TypeBool, Default: true},
			{Name: "mailbox", Type: TypeString, Default: "INBOX", NonEmpty: true},
			{Name: "query", Type: TypeString, Default: "UNSEEN", Enum: []string{"ALL", "UNSEEN"}},
			{Name: "processed_tag", Type: TypeString, Default: "AIProcessed", NonEmpty: true},
			{Name: "failed_tag", Type: TypeString, Default: "NoteCreationFailed", NonEmpty: true},
			{Name: "timeout_seconds", Type: TypeInt, Default: 30, Min: bound(1)},
		},
	},
	{
		Name:     "llm",
		Required: true,
		Fields: []Field{
			{Name: "provider", Type: TypeString, Required: true, Enum: []string{"openai", "gemini", "bedrock"}},
			{Name: "model", Type: TypeString, Required: true, NonEmpty: true},
			{Name: "api_key_env", Type: TypeString, Default: ""},
			{Name: "base_url", Type: TypeString, Default: ""},
			{Name: "region", Type: TypeString, Default: "us-east-1"},
			{Name: "temperature", Type: TypeFloat, Default: 0.2, Min: bound(0), Max: bound(2)},
			{Name: "max_tokens", Type: TypeInt, Default: 200, Min: bound(1)},
			{Name: "retry_attempts", Type: TypeInt, Default: 3, Min: bound(1), Max: bound(10)},
			{Name: "retry_delay_seconds", Type: TypeFloat, Default: 5.0, Min: bound(0)},
			{Name: "retry_jitter_seconds", Type: TypeFloat, Default: 1.0, Min: bound(0)},
			{Name: "timeout_seconds", Type: TypeInt, Default: 60, Min: bound(1)},
		},
	},
	{
		Name:     "classification",
		Required: true,
		Fields: []Field{
			{Name: "importance_threshold", Type: TypeInt, Required: true, Min: bound(0), Max: bound(10)},
			{Name: "spam_threshold", Type: TypeInt, Required: true, Min: bound(0), Max: bound(10)},
			{Name: "max_body_chars", Type: TypeInt, Default: 4000, Min: bound(1)},
			{Name: "prompt", Type: TypeString, Default: ""},
			{Name: "prompt_file", Type: TypeString, Default: ""},
		},
	},
	{
		Name: "processing",
		Fields: []Field{
			{Name: "max_emails_per_run", Type: TypeInt, Default: 0, Min: bound(0)},
		},
	},
	{
		Name:     "paths",
		Required: true,
		Fields: []Field{
			{Name: "notes_dir", Type: TypeString, Required: true, NonEmpty: true},
			{Name: "template_file", Type: TypeString, Default: ""},
		},
	},
	{
		Name: "safety_interlock",
		Fields: []Field{
			{Name: "enabled", Type: TypeBool, Default: true},
			{Name: "cost_threshold", Type: TypeFloat, Default: 0.10, Min: bound(0)},
			{Name: "skip_confirmation_below_threshold", Type: TypeBool, Default: true},
			{Name: "cost_per_email", Type: TypeFloat, Min: bound(0)},
			{Name: "average_tokens_per_email", Type: TypeInt, Default: 2000, Min: bound(0)},
			{Name: "cost_per_1k_tokens", Type: TypeFloat, Default: 0.0, Min: bound(0)},
		},
	},
	{
		Name: "ledger",
		Fields: []Field{
			{Name: "type", Type: TypeString, Default: "memory", Enum: []string{"memory", "sqlite", "mysql"}},
			{Name: "sqlite_path", Type: TypeString, Default: "data/ledger.db", NonEmpty: true},
			{Name: "mysql_dsn_env", Type: TypeString, Default: ""},
		},
	},
	{
		Name: "notify",
		Fields: []Field{
			{Name: "enabled", Type: TypeBool, Default: false},
			{Name: "smtp_address", Type: TypeString, Default: ""},
			{Name: "starttls", Type: TypeBool, Default: true},
			{Name: "from", Type: TypeString, Default: ""},
			{Name: "to", Type: TypeStringList, Default: []any{}},
			{Name: "username", Type: TypeString, Default: ""},
			{Name: "password_env", Type: TypeString, Default: ""},
		},
	},
	{
		Name: "logging",
		Fields: []Field{
			{Name: "level", Type: TypeString, Default: "info", Enum: []string{"debug", "info", "warn", "error"}},
			{Name: "format", Type: TypeString, Default: "console", Enum: []string{"console", "json"}},
		},
	},
}

// FieldError is one schema violation
type FieldError struct {
	Path     string
	Expected string
	Actual   string
	Message  string
}

func (e FieldError) String() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (expected %s, got %s)", e.Path, e.Message, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// ValidateDocument walks the schema and returns every violation found in doc
func ValidateDocument(doc map[string]any) []FieldError {
	var errs []FieldError

	for _, section := range Schema {
		raw, present := doc[section.Name]
		if !present || raw == nil {
			if section.Required {
				errs = append(errs, FieldError{Path: section.Name, Expected: "mapping", Actual: "missing", Message: "required section"})
			}
			continue
		}
		m, ok := asMap(raw)
		if !ok {
			errs = append(errs, FieldError{Path: section.Name, Expected: "mapping", Actual: describe(raw)})
			continue
		}
		for _, field := range section.Fields {
			path := section.Name + "." + field.Name
			v, present := m[field.Name]
			if !present || v == nil {
				if field.Required {
					errs = append(errs, FieldError{Path: path, Expected: field.Type.String(), Actual: "missing", Message: "required field"})
				}
				continue
			}
			if fe := checkField(path, field, v); fe != nil {
				errs = append(errs, *fe)
			}
		}
	}

	errs = append(errs, crossFieldErrors(doc)...)
	return errs
}

func checkField(path string, field Field, v any) *FieldError {
	mismatch := &FieldError{Path: path, Expected: field.Type.String(), Actual: describe(v)}

	switch field.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return mismatch
		}
		if field.NonEmpty && strings.TrimSpace(s) == "" {
			return &FieldError{Path: path, Expected: "non-empty string", Actual: "empty string"}
		}
		if len(field.Enum) > 0 && !contains(field.Enum, s) {
			return &FieldError{Path: path, Expected: "one of " + strings.Join(field.Enum, ", "), Actual: fmt.Sprintf("%q", s)}
		}
	case TypeInt:
		n, ok := toInt(v)
		if !ok {
			return mismatch
		}
		if fe := checkRange(path, float64(n), field); fe != nil {
			return fe
		}
	case TypeFloat:
		f, ok := toFloat(v)
		if !ok {
			return mismatch
		}
		if fe := checkRange(path, f, field); fe != nil {
			return fe
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return mismatch
		}
	case TypeStringList:
		if _, ok := toStringList(v); !ok {
			return mismatch
		}
	}
	return nil
}

func checkRange(path string, n float64, field Field) *FieldError {
	if field.Min != nil && n < *field.Min {
		return &FieldError{Path: path, Expected: fmt.Sprintf(">= %g", *field.Min), Actual: fmt.Sprintf("%g", n), Message: "out of range"}
	}
	if field.Max != nil && n > *field.Max {
		return &FieldError{Path: path, Expected: fmt.Sprintf("<= %g", *field.Max), Actual: fmt.Sprintf("%g", n), Message: "out of range"}
	}
	return nil
}

// crossFieldErrors covers constraints spanning more than one key
func crossFieldErrors(doc map[string]any) []FieldError {
	var errs []FieldError
	str := func(section, key string) string {
		m, _ := asMap(doc[section])
		s, _ := m[key].(string)
		return strings.TrimSpace(s)
	}

	switch str("llm", "provider") {
	case "openai", "gemini":
		if str("llm", "api_key_env") == "" {
			errs = append(errs, FieldError{Path: "llm.api_key_env", Expected: "environment variable name", Actual: "missing", Message: "required for this provider"})
		}
	}

	if str("ledger", "type") == "mysql" && str("ledger", "mysql_dsn_env") == "" {
		errs = append(errs, FieldError{Path: "ledger.mysql_dsn_env", Expected: "environment variable name", Actual: "missing", Message: "required for mysql ledger"})
	}

	if notify, ok := asMap(doc["notify"]); ok {
		if enabled, _ := notify["enabled"].(bool); enabled {
			for _, key := range []string{"smtp_address", "from"} {
				if str("notify", key) == "" {
					errs = append(errs, FieldError{Path: "notify." + key, Expected: "non-empty string", Actual: "missing", Message: "required when notify is enabled"})
				}
			}
			if to, _ := toStringList(notify["to"]); len(to) == 0 {
				errs = append(errs, FieldError{Path: "notify.to", Expected: "list of strings", Actual: "empty", Message: "required when notify is enabled"})
			}
		}
	}
	return errs
}

// ApplyDefaults returns a copy of doc with schema defaults filled in for
// every optional field the document leaves out.
func ApplyDefaults(doc map[string]any) map[string]any {
	out, _ := cloneValue(doc).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}

	for _, section := range Schema {
		m, ok := asMap(out[section.Name])
		if !ok {
			m = map[string]any{}
		}
		for _, field := range section.Fields {
			if v, present := m[field.Name]; present && v != nil {
				continue
			}
			if field.Default != nil {
				m[field.Name] = cloneValue(field.Default)
			}
		}
		out[section.Name] = m
	}
	return out
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "number"
	case []any, []string:
		return "list"
	case map[string]any, map[any]any:
		return "mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		if i, ok := toInt(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

func toStringList(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// sortedErrors orders violations by path for stable output
func sortedErrors(errs []FieldError) []FieldError {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
	return errs
}
