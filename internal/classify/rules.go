package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules are optional user-supplied refinements loaded from a YAML
// file. Keywords extend the advisory keyword list on match results;
// Mute patterns suppress notifications for matching texts (reposts,
// ads) without changing the classification itself.
type Rules struct {
	Keywords []string `yaml:"keywords"`
	Mute     []string `yaml:"mute"`
}

// LoadRules reads a rules file. A missing path (or empty string)
// yields empty rules, not an error.
func LoadRules(path string) (Rules, error) {
	var rules Rules
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return rules, fmt.Errorf("read rules file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rules, nil
}
