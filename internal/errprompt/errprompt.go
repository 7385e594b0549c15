// Package errprompt attaches guidance for the calling agent to error messages.
package errprompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule appends Message to any error whose text matches Pattern.
type Rule struct {
	Pattern string
	Message string
}

// builtinRules cover the errors an agent hits most against a guarded database.
var builtinRules = []Rule{
	{
		Pattern: `write operations are not allowed`,
		Message: "This server is read-only. Use SELECT, WITH, SHOW, EXPLAIN, VALUES or TABLE statements only.",
	},
	{
		Pattern: `(?i)in a read-only transaction`,
		Message: "The database session is read-only. Functions that modify state, such as nextval(), cannot run here.",
	},
	{
		Pattern: `(?i)relation ".*" does not exist`,
		Message: "The table does not exist. Use list_tables to see available tables.",
	},
	{
		Pattern: `(?i)column ".*" does not exist`,
		Message: "Use describe_table to see the columns of the table.",
	},
	{
		Pattern: `(?i)statement timeout|context deadline exceeded`,
		Message: "The query timed out. Add a LIMIT or a narrower WHERE clause.",
	},
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher holds the built-in rules followed by configured ones. Safe for
// concurrent use.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher compiles the built-in rules plus extra. Returns an error on an
// invalid regex in extra.
func NewMatcher(extra []Rule) (*Matcher, error) {
	m := &Matcher{rules: make([]compiledRule, 0, len(builtinRules)+len(extra))}
	for _, r := range builtinRules {
		m.rules = append(m.rules, compiledRule{pattern: regexp.MustCompile(r.Pattern), message: r.Message})
	}
	for _, r := range extra {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("errprompt: invalid regex pattern %q: %v", r.Pattern, err)
		}
		m.rules = append(m.rules, compiledRule{pattern: re, message: r.Message})
	}
	return m, nil
}

// Prompt returns the messages of every rule matching errMsg, in rule order and
// joined by newlines, along with the patterns that matched. Both are empty
// when nothing matches.
func (m *Matcher) Prompt(errMsg string) (string, []string) {
	var messages, patterns []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			messages = append(messages, rule.message)
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return strings.Join(messages, "\n"), patterns
}

// Annotate returns errMsg followed by a blank line and its prompt, or errMsg
// unchanged when no rule matches.
func (m *Matcher) Annotate(errMsg string) string {
	prompt, _ := m.Prompt(errMsg)
	if prompt == "" {
		return errMsg
	}
	return errMsg + "\n\n" + prompt
}
