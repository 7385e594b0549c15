// Package ident quotes schema and table names for interpolation into
// generated SQL.
package ident

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsafeIdentifier is returned for identifiers that cannot be quoted safely.
var ErrUnsafeIdentifier = errors.New("unsafe identifier")

// Quote wraps name in double quotes, doubling any embedded double quote.
// Names containing a null byte are rejected. Reserved words and case are not
// touched: the result always names exactly the given string.
func Quote(name string) (string, error) {
	if strings.IndexByte(name, 0) >= 0 {
		return "", fmt.Errorf("%w: %q contains a null byte", ErrUnsafeIdentifier, name)
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}

// Qualified quotes schema and table and joins them as schema.table.
func Qualified(schema, table string) (string, error) {
	s, err := Quote(schema)
	if err != nil {
		return "", fmt.Errorf("schema: %w", err)
	}
	t, err := Quote(table)
	if err != nil {
		return "", fmt.Errorf("table: %w", err)
	}
	return s + "." + t, nil
}
