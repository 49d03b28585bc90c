// Package sanitize rewrites image-generation prompts so that vocabulary known to
// trip the image provider's content filters is replaced with neutral equivalents
// before the prompt is sent. Replacement is deterministic and case-insensitive,
// and the rule table is validated at construction so that sanitizing an already
// sanitized prompt always returns it unchanged.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// TruncationMarker is appended to prompts cut down by Truncate so that a
// shortened prompt is distinguishable from one that was authored short.
const TruncationMarker = "..."

// Rule pairs a case-insensitive pattern with the text that replaces it.
// Pattern is a regular expression fragment; it is anchored on word boundaries
// when compiled, so plain words and phrases work without further escaping.
type Rule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

// Sanitizer applies an ordered rule table to prompt text.
type Sanitizer struct {
	rules []compiledRule
}

// defaultRules is the compiled-in replacement table. Longer phrases come first
// so a phrase rule wins over any single-word rule it contains.
var defaultRules = []Rule{
	{Pattern: "beats up", Replacement: "overcomes"},
	{Pattern: "beat up", Replacement: "overcome"},
	{Pattern: "fights", Replacement: "challenges"},
	{Pattern: "fighting", Replacement: "challenging"},
	{Pattern: "fight", Replacement: "challenge"},
	{Pattern: "violently", Replacement: "intensely"},
	{Pattern: "violent", Replacement: "intense"},
	{Pattern: "kills", Replacement: "defeats"},
	{Pattern: "killing", Replacement: "defeating"},
	{Pattern: "kill", Replacement: "defeat"},
	{Pattern: "attacks", Replacement: "confronts"},
	{Pattern: "attacking", Replacement: "confronting"},
	{Pattern: "attack", Replacement: "confront"},
	{Pattern: "destroys", Replacement: "dismantles"},
	{Pattern: "destroy", Replacement: "dismantle"},
	{Pattern: "weapons", Replacement: "tools"},
	{Pattern: "weapon", Replacement: "tool"},
	{Pattern: "bloody", Replacement: "fierce"},
}

// New compiles the given rules into a Sanitizer. It returns an error if any
// pattern fails to compile or if the rule set is not idempotent, that is, if
// any replacement text would itself be rewritten by the rule set.
func New(rules []Rule) (*Sanitizer, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("sanitize: empty rule set")
	}

	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(`(?i)\b(?:` + r.Pattern + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("sanitize: rule %d (%q): %w", i, r.Pattern, err)
		}
		compiled = append(compiled, compiledRule{re: re, replacement: r.Replacement})
	}

	s := &Sanitizer{rules: compiled}
	for i, r := range rules {
		if got := s.Sanitize(r.Replacement); got != r.Replacement {
			return nil, fmt.Errorf(
				"sanitize: rule %d replacement %q is rewritten to %q, rule set is not idempotent",
				i, r.Replacement, got,
			)
		}
	}
	return s, nil
}

// Default returns a Sanitizer backed by the compiled-in rule table.
func Default() *Sanitizer {
	s, err := New(defaultRules)
	if err != nil {
		// The compiled-in table is validated by tests; failing to build it is
		// a programming error, not a runtime condition.
		panic(err)
	}
	return s
}

// Sanitize applies every rule in order and returns the rewritten prompt.
// Sanitize(Sanitize(x)) == Sanitize(x) for any x.
func (s *Sanitizer) Sanitize(text string) string {
	if text == "" {
		return text
	}
	result := text
	for _, r := range s.rules {
		result = r.re.ReplaceAllString(result, r.replacement)
	}
	return result
}

// RuleCount reports how many rules the sanitizer carries.
func (s *Sanitizer) RuleCount() int {
	return len(s.rules)
}

// Truncate enforces a hard cap of max runes on text. Text over the cap is
// cut, trailing spaces are trimmed, and the truncation marker is appended;
// the result never exceeds max runes. A max too small to hold the marker
// returns just the marker's first max runes.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	marker := []rune(TruncationMarker)
	if max <= len(marker) {
		return string(marker[:max])
	}
	cut := strings.TrimRight(string(runes[:max-len(marker)]), " ")
	return cut + TruncationMarker
}
