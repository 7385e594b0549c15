package ident

import (
	"errors"
	"strings"
	"testing"
)

func TestQuote(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"users", `"users"`},
		{"Users", `"Users"`},
		{`my"table`, `"my""table"`},
		{`""`, `""""""`},
		{"", `""`},
		{"select", `"select"`},
		{"a; DROP TABLE b; --", `"a; DROP TABLE b; --"`},
		{"naïve", `"naïve"`},
	}
	for _, tt := range tests {
		got, err := Quote(tt.in)
		if err != nil {
			t.Fatalf("Quote(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestQuote_NullByte(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"\x00", "users\x00", "us\x00ers", "\x00\"; DROP TABLE x"} {
		_, err := Quote(in)
		if err == nil {
			t.Fatalf("expected error for %q", in)
		}
		if !errors.Is(err, ErrUnsafeIdentifier) {
			t.Fatalf("expected ErrUnsafeIdentifier, got %v", err)
		}
	}
}

func TestQuote_NoUnbalancedQuotes(t *testing.T) {
	t.Parallel()
	for _, in := range []string{`"`, `a"b"c`, `"""`, `x" OR "1"="1`} {
		got, err := Quote(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		inner := got[1 : len(got)-1]
		if strings.Count(inner, `"`)%2 != 0 {
			t.Errorf("Quote(%q) = %s leaves an unpaired quote", in, got)
		}
		if strings.ReplaceAll(inner, `""`, `"`) != in {
			t.Errorf("Quote(%q) = %s does not round-trip", in, got)
		}
	}
}

func TestQualified(t *testing.T) {
	t.Parallel()
	got, err := Qualified("public", `my"table`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `"public"."my""table"` {
		t.Fatalf("got %s", got)
	}
}

func TestQualified_NullByte(t *testing.T) {
	t.Parallel()
	_, err := Qualified("pub\x00lic", "users")
	if !errors.Is(err, ErrUnsafeIdentifier) || !strings.HasPrefix(err.Error(), "schema:") {
		t.Fatalf("expected schema ErrUnsafeIdentifier, got %v", err)
	}
	_, err = Qualified("public", "users\x00")
	if !errors.Is(err, ErrUnsafeIdentifier) || !strings.HasPrefix(err.Error(), "table:") {
		t.Fatalf("expected table ErrUnsafeIdentifier, got %v", err)
	}
}
