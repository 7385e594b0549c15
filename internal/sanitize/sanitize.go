// Package sanitize masks sensitive values in query results before they are
// returned to the client.
package sanitize

import (
	"fmt"
	"regexp"
)

// Rule replaces matches of Pattern with Replacement. When Column is set it is
// a regex on the column name and the rule only touches matching columns.
type Rule struct {
	Column      string
	Pattern     string
	Replacement string
}

type compiledRule struct {
	column      *regexp.Regexp
	pattern     *regexp.Regexp
	replacement string
}

func (r compiledRule) appliesTo(column string) bool {
	return r.column == nil || r.column.MatchString(column)
}

// Sanitizer applies rules to row values. Safe for concurrent use.
type Sanitizer struct {
	rules []compiledRule
}

// NewSanitizer compiles rules. Returns an error on an invalid regex.
func NewSanitizer(rules []Rule) (*Sanitizer, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitize: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
		if r.Column != "" {
			col, err := regexp.Compile(r.Column)
			if err != nil {
				return nil, fmt.Errorf("sanitize: invalid column pattern %q: %v", r.Column, err)
			}
			compiled[i].column = col
		}
	}
	return &Sanitizer{rules: compiled}, nil
}

// HasRules returns true if the sanitizer has any rules configured.
func (s *Sanitizer) HasRules() bool {
	return len(s.rules) > 0
}

// SanitizeRows rewrites string values in place, recursing into JSON objects
// and arrays. Nested values inherit the top-level column name.
func (s *Sanitizer) SanitizeRows(rows []map[string]interface{}) []map[string]interface{} {
	if !s.HasRules() {
		return rows
	}
	for _, row := range rows {
		for col, v := range row {
			row[col] = s.sanitizeValue(col, v)
		}
	}
	return rows
}

func (s *Sanitizer) sanitizeValue(column string, v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		for _, rule := range s.rules {
			if rule.appliesTo(column) {
				val = rule.pattern.ReplaceAllString(val, rule.replacement)
			}
		}
		return val
	case map[string]interface{}:
		for k, item := range val {
			val[k] = s.sanitizeValue(column, item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = s.sanitizeValue(column, item)
		}
		return val
	default:
		// json.Number is a distinct type and is left alone here.
		return v
	}
}
