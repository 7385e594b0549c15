package statement

import (
	"sort"
	"strings"
)

// writeOperations are leading keywords that mutate data or schema. The CTE
// scan walks this list in order.
var writeOperations = [...]string{
	"insert", "update", "delete", "truncate", "drop", "alter", "create",
	"grant", "revoke", "import", "copy", "merge", "upsert", "replace",
}

// safeKeywords are leading keywords known not to mutate state.
var safeKeywords = map[string]struct{}{
	"select":   {},
	"with":     {},
	"show":     {},
	"explain":  {},
	"values":   {},
	"table":    {},
	"describe": {},
	"desc":     {},
}

// IsWriteKeyword reports whether kw (any case) is a write operation keyword.
func IsWriteKeyword(kw string) bool {
	kw = strings.ToLower(kw)
	for _, w := range writeOperations {
		if w == kw {
			return true
		}
	}
	return false
}

// IsSafeKeyword reports whether kw (any case) is a read-only leading keyword.
func IsSafeKeyword(kw string) bool {
	_, ok := safeKeywords[strings.ToLower(kw)]
	return ok
}

// WriteOperations returns a copy of the write keyword list.
func WriteOperations() []string {
	out := make([]string, len(writeOperations))
	copy(out, writeOperations[:])
	return out
}

// SafeKeywords returns the read-only leading keywords, sorted.
func SafeKeywords() []string {
	out := make([]string, 0, len(safeKeywords))
	for kw := range safeKeywords {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// LeadingKeyword returns the lowercased first word of stmt. Opening
// parentheses, whitespace and comments before it are skipped, so
// "( /* x */ SELECT 1)" yields "select". It returns "" when the statement has
// no leading word.
func LeadingKeyword(stmt string) string {
	rest := skipPreamble(stmt)
	end := 0
	for end < len(rest) && isWordByte(rest[end]) {
		end++
	}
	return strings.ToLower(rest[:end])
}

// IsWrite reports whether stmt should be treated as a write.
//
// A WITH statement is a write if any write keyword appears anywhere in its
// text, matched as a plain case-insensitive substring. Mentions inside string
// literals or identifiers therefore count too. Any other statement is a write
// unless its leading keyword is a safe keyword. A statement without a leading
// word is not a write.
func IsWrite(stmt string) bool {
	kw := LeadingKeyword(stmt)
	if kw == "" {
		return false
	}
	if kw == "with" {
		return containsWriteOperation(stmt)
	}
	return !IsSafeKeyword(kw)
}

func containsWriteOperation(stmt string) bool {
	lower := strings.ToLower(stmt)
	for _, w := range writeOperations {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// skipPreamble drops leading whitespace, '(' and SQL comments. An unterminated
// comment consumes the rest of the statement.
func skipPreamble(s string) string {
	for {
		s = strings.TrimLeft(s, "( \t\r\n\f\v")
		switch {
		case strings.HasPrefix(s, "--"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return ""
			}
			s = s[nl+1:]
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s[2:], "*/")
			if end < 0 {
				return ""
			}
			s = s[end+4:]
		default:
			return s
		}
	}
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
