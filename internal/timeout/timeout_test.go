package timeout

import (
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: "pg_stat", Timeout: 5 * time.Second},
			{Pattern: "(?i)join", Timeout: 60 * time.Second},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestResolve_FirstRule(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	got, pattern := m.Resolve("SELECT * FROM pg_stat_activity")
	if got != 5*time.Second || pattern != "pg_stat" {
		t.Errorf("expected 5s from pg_stat, got %v from %q", got, pattern)
	}
}

func TestResolve_StopOnFirstMatch(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	got, _ := m.Resolve("SELECT * FROM pg_stat JOIN x JOIN y")
	if got != 5*time.Second {
		t.Errorf("expected 5s (first match wins), got %v", got)
	}
}

func TestResolve_Default(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	got, pattern := m.Resolve("SELECT 1")
	if got != 30*time.Second || pattern != "" {
		t.Errorf("expected default 30s with no pattern, got %v / %q", got, pattern)
	}
}

func TestResolve_CaseInsensitiveRule(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	got, pattern := m.Resolve("select * from a join b on true")
	if got != 60*time.Second || pattern != "(?i)join" {
		t.Errorf("expected 60s from (?i)join, got %v / %q", got, pattern)
	}
}

func TestNewManager_InvalidRegex(t *testing.T) {
	t.Parallel()
	_, err := NewManager(Config{
		DefaultTimeout: time.Second,
		Rules:          []Rule{{Pattern: "[bad(", Timeout: time.Second}},
	})
	if err == nil || !strings.Contains(err.Error(), "invalid regex") {
		t.Fatalf("expected invalid regex error, got %v", err)
	}
}

func TestNewManager_InvalidTimeouts(t *testing.T) {
	t.Parallel()
	if _, err := NewManager(Config{}); err == nil {
		t.Fatal("expected error for zero default timeout")
	}
	_, err := NewManager(Config{
		DefaultTimeout: time.Second,
		Rules:          []Rule{{Pattern: "x", Timeout: 0}},
	})
	if err == nil || !strings.Contains(err.Error(), "timeout > 0") {
		t.Fatalf("expected rule timeout error, got %v", err)
	}
}
