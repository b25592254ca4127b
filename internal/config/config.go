package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mikey/llm-inbox-triage/internal/rules"
)

const (
	globalFileName = "config.yaml"
	accountsDir    = "accounts"
	exampleSuffix  = ".example"
)

// Store loads and merges configuration documents from a config directory:
//
//	<dir>/config.yaml               global document (mandatory)
//	<dir>/blacklist.yaml            global rules (optional)
//	<dir>/whitelist.yaml
//	<dir>/accounts/<id>.yaml        account override (optional)
//	<dir>/accounts/<id>/blacklist.yaml
//	<dir>/accounts/<id>/whitelist.yaml
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a new configuration store rooted at dir
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the configuration directory
func (s *Store) Dir() string {
	return s.dir
}

// GlobalPath returns the location of the global document
func (s *Store) GlobalPath() string {
	return filepath.Join(s.dir, globalFileName)
}

// LoadGlobal reads the global document. It fails with ErrConfigNotFound when
// the file does not exist.
func (s *Store) LoadGlobal() (map[string]any, error) {
	path := s.GlobalPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat global config: %w", err)
	}
	return readDocument(path)
}

// LoadAccountOverride reads the account document, returning an empty
// mapping when the account has no file of its own.
func (s *Store) LoadAccountOverride(accountID string) (map[string]any, error) {
	if err := ValidateAccountName(accountID); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, accountsDir, accountID+".yaml")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("No account override, using global configuration", zap.String("account", accountID))
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to stat account config: %w", err)
	}
	return readDocument(path)
}

// DiscoverAccounts lists account ids that have an override document, sorted.
// Files whose names are not valid account ids are skipped.
func (s *Store) DiscoverAccounts() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, accountsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		if strings.HasSuffix(id, exampleSuffix) {
			continue
		}
		if err := ValidateAccountName(id); err != nil {
			s.logger.Warn("Skipping account file with invalid name", zap.String("file", name), zap.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Load builds the configuration for accountID using an already loaded
// global document, so a run reads the global file only once.
func (s *Store) Load(global map[string]any, accountID string) (AccountConfig, error) {
	override, err := s.LoadAccountOverride(accountID)
	if err != nil {
		return AccountConfig{}, err
	}

	cfg, err := MergeAndValidate(global, override)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.AccountID = accountID
		}
		return AccountConfig{}, err
	}
	cfg.AccountID = accountID

	if cfg.Blacklist, err = s.LoadRules(accountID, rules.KindBlacklist); err != nil {
		return AccountConfig{}, err
	}
	if cfg.Whitelist, err = s.LoadRules(accountID, rules.KindWhitelist); err != nil {
		return AccountConfig{}, err
	}

	if cfg.Classification.Prompt == "" && cfg.Classification.PromptFile != "" {
		data, err := os.ReadFile(s.resolve(cfg.Classification.PromptFile))
		if err != nil {
			return AccountConfig{}, fmt.Errorf("failed to read prompt file: %w", err)
		}
		cfg.Classification.Prompt = string(data)
	}
	if cfg.Paths.TemplateFile != "" {
		cfg.Paths.TemplateFile = s.resolve(cfg.Paths.TemplateFile)
	}

	s.logger.Debug("Loaded account configuration",
		zap.String("account", accountID),
		zap.Int("blacklist_rules", len(cfg.Blacklist)),
		zap.Int("whitelist_rules", len(cfg.Whitelist)))
	return cfg, nil
}

// Effective returns the merged document with defaults, as used for accountID
func (s *Store) Effective(global map[string]any, accountID string) (map[string]any, error) {
	override, err := s.LoadAccountOverride(accountID)
	if err != nil {
		return nil, err
	}
	merged := DeepMerge(global, override)
	if errs := ValidateDocument(merged); len(errs) > 0 {
		return nil, &ValidationError{AccountID: accountID, Errors: sortedErrors(errs)}
	}
	return ApplyDefaults(merged), nil
}

// LoadRules reads the rule document of the given kind. An account-scoped
// file replaces the global one entirely; rule lists are never merged.
func (s *Store) LoadRules(accountID string, kind rules.Kind) ([]rules.Rule, error) {
	candidates := []string{
		filepath.Join(s.dir, accountsDir, accountID, string(kind)+".yaml"),
		filepath.Join(s.dir, string(kind)+".yaml"),
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s rules: %w", kind, err)
		}
		list, err := ParseRules(kind, path, data)
		if err != nil {
			return nil, err
		}
		return list, nil
	}
	return nil, nil
}

// ParseRules decodes a YAML list of rules and validates it
func ParseRules(kind rules.Kind, source string, data []byte) ([]rules.Rule, error) {
	var list []rules.Rule
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, &rules.DefinitionError{
			Kind:       kind,
			Source:     source,
			Violations: []rules.Violation{{Index: -1, Field: "document", Message: err.Error()}},
		}
	}
	if err := rules.Validate(kind, source, list); err != nil {
		return nil, err
	}
	return list, nil
}

// MergeAndValidate deep-merges override onto global, validates the result
// against Schema, fills defaults and decodes the typed configuration.
func MergeAndValidate(global, override map[string]any) (AccountConfig, error) {
	merged := DeepMerge(global, override)
	if errs := ValidateDocument(merged); len(errs) > 0 {
		return AccountConfig{}, &ValidationError{Errors: sortedErrors(errs)}
	}

	v := viper.New()
	if err := v.MergeConfigMap(ApplyDefaults(merged)); err != nil {
		return AccountConfig{}, fmt.Errorf("failed to load merged configuration: %w", err)
	}

	var cfg AccountConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AccountConfig{}, fmt.Errorf("failed to decode merged configuration: %w", err)
	}
	return cfg, nil
}

// readDocument parses a YAML file into an untyped mapping
func readDocument(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return v.AllSettings(), nil
}

func (s *Store) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.dir, path)
}
