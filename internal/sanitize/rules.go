package sanitize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk shape of a replacement table override.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rule table of the form:
//
//	rules:
//	  - pattern: "beats up"
//	    replacement: "overcomes"
//
// The loaded rules replace the compiled-in table entirely.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sanitize: read rules file: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("sanitize: parse rules file %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("sanitize: rules file %s contains no rules", path)
	}
	return f.Rules, nil
}

// FromFile builds a Sanitizer from a YAML rule file. An empty path selects the
// compiled-in default table.
func FromFile(path string) (*Sanitizer, error) {
	if path == "" {
		return Default(), nil
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(rules)
}
