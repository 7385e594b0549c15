package timeout

import (
	"fmt"
	"regexp"
	"time"
)

// Rule maps a SQL regex to a timeout.
type Rule struct {
	Pattern string
	Timeout time.Duration
}

// Config is the timeout manager's own config type.
type Config struct {
	DefaultTimeout time.Duration
	Rules          []Rule
}

type compiledRule struct {
	pattern *regexp.Regexp
	timeout time.Duration
}

// Manager picks the execution timeout for a query.
type Manager struct {
	rules          []compiledRule
	defaultTimeout time.Duration
}

// NewManager compiles the rules. Returns an error on an invalid regex or a
// non-positive timeout.
func NewManager(config Config) (*Manager, error) {
	if config.DefaultTimeout <= 0 {
		return nil, fmt.Errorf("timeout: default timeout must be > 0, got %s", config.DefaultTimeout)
	}
	compiled := make([]compiledRule, len(config.Rules))
	for i, r := range config.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("timeout: invalid regex pattern %q: %v", r.Pattern, err)
		}
		if r.Timeout <= 0 {
			return nil, fmt.Errorf("timeout: rule %q must have a timeout > 0", r.Pattern)
		}
		compiled[i] = compiledRule{pattern: re, timeout: r.Timeout}
	}
	return &Manager{rules: compiled, defaultTimeout: config.DefaultTimeout}, nil
}

// Resolve returns the timeout for sql and the pattern of the rule that chose
// it. First matching rule wins; the pattern is "" when the default applies.
func (m *Manager) Resolve(sql string) (time.Duration, string) {
	for _, rule := range m.rules {
		if rule.pattern.MatchString(sql) {
			return rule.timeout, rule.pattern.String()
		}
	}
	return m.defaultTimeout, ""
}
