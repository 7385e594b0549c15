// Package guard decides whether a raw SQL string may be executed.
package guard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rickchristie/pgsafe-mcp/internal/statement"
)

// ErrEmptyQuery is wrapped by the ValidationError returned for blank input.
var ErrEmptyQuery = errors.New("query is empty")

// ValidationError is returned when a query is rejected.
type ValidationError struct {
	Reason string
	// StatementIndex is the 1-based position of the offending statement, or 0
	// when the rejection is not about a single statement.
	StatementIndex int
	Keyword        string
	err            error
}

func (e *ValidationError) Error() string {
	return "query validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// Config is the validator's own config type.
type Config struct {
	AllowWriteOperations bool
}

// Validator checks queries before execution. Safe for concurrent use.
type Validator struct {
	allowWrites bool
	logger      zerolog.Logger
}

// New creates a Validator. The write policy is fixed for its lifetime.
func New(config Config, logger zerolog.Logger) *Validator {
	return &Validator{allowWrites: config.AllowWriteOperations, logger: logger}
}

// AllowsWrites reports whether write statements pass validation.
func (v *Validator) AllowsWrites() bool {
	return v.allowWrites
}

// Validate returns nil if sql may run. The query itself is never modified.
//
// Suspicious patterns are only logged. When writes are disallowed, statements
// are classified in order and the first write rejects the whole query.
func (v *Validator) Validate(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return &ValidationError{Reason: "query must not be empty", err: ErrEmptyQuery}
	}

	for _, m := range SuspiciousMatches(sql) {
		v.logger.Warn().
			Str("pattern", m.Pattern).
			Str("description", m.Description).
			Msg("suspicious SQL pattern")
	}

	if v.allowWrites {
		v.logger.Debug().Bool("writes_allowed", true).Msg("query validated")
		return nil
	}

	stmts := statement.Split(sql)
	for i, stmt := range stmts {
		if !statement.IsWrite(stmt) {
			continue
		}
		kw := statement.LeadingKeyword(stmt)
		what := "is not a known read statement"
		if statement.IsWriteKeyword(kw) {
			what = "is a write"
		} else if kw == "with" {
			what = "mentions a write keyword"
		}
		return &ValidationError{
			Reason:         fmt.Sprintf("write operations are not allowed: statement %d (%s) %s", i+1, strings.ToUpper(kw), what),
			StatementIndex: i + 1,
			Keyword:        kw,
		}
	}

	v.logger.Debug().
		Int("statements", len(stmts)).
		Bool("writes_allowed", false).
		Msg("query validated")
	return nil
}
