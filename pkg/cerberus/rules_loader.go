package cerberus

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

// RuleLoader loads access rules from files.
type RuleLoader struct{}

// NewRuleLoader creates a new loader.
func NewRuleLoader() *RuleLoader {
	return &RuleLoader{}
}

// LoadRules loads rules from a YAML file or a directory of YAML files.
// Files in a directory are merged in name order.
func (l *RuleLoader) LoadRules(path string) ([]domain.AccessRule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return l.loadFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var rules []domain.AccessRule
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		sub, err := l.loadFile(filepath.Join(path, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}
		rules = append(rules, sub...)
	}

	return rules, nil
}

func (l *RuleLoader) loadFile(path string) ([]domain.AccessRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rules []domain.AccessRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		// Also accept a document with a top-level "rules" key.
		var doc struct {
			Rules []domain.AccessRule `yaml:"rules"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 == nil && len(doc.Rules) > 0 {
			return doc.Rules, nil
		}
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	return rules, nil
}
