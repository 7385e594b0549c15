package statement

import (
	"reflect"
	"strings"
	"testing"
)

func assertSplit(t *testing.T, sql string, want ...string) {
	t.Helper()
	got := Split(sql)
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split(%q)\n got: %q\nwant: %q", sql, got, want)
	}
}

func TestSplit_Empty(t *testing.T) {
	t.Parallel()
	assertSplit(t, "")
	assertSplit(t, "   \n\t ")
	assertSplit(t, ";")
	assertSplit(t, " ; ;; \n;")
}

func TestSplit_NoSemicolonReturnsTrimmedInput(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"SELECT 1",
		"  SELECT * FROM users WHERE id = 1  ",
		"\n\tEXPLAIN SELECT 1\n",
		"SELECT 'quoted' FROM \"Table\"",
		"SELECT 1 -- trailing comment",
		"/* lead */ SELECT 1",
	}
	for _, in := range inputs {
		assertSplit(t, in, strings.TrimSpace(in))
	}
}

func TestSplit_RepeatedStatement(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"SELECT 1",
		"  UPDATE t SET x = 1  ",
		"with a as (select 1) select * from a",
		"\tSHOW search_path\n",
	}
	for _, s := range inputs {
		trimmed := strings.TrimSpace(s)
		assertSplit(t, s+";"+s, trimmed, trimmed)
	}
}

func TestSplit_TrailingSemicolon(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT 1;", "SELECT 1")
	assertSplit(t, "SELECT 1; SELECT 2;", "SELECT 1", "SELECT 2")
}

func TestSplit_SemicolonInSingleQuotes(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT 'a;b'", "SELECT 'a;b'")
	assertSplit(t, "SELECT 'a;b'; SELECT 2", "SELECT 'a;b'", "SELECT 2")
}

func TestSplit_SemicolonInDoubleQuotes(t *testing.T) {
	t.Parallel()
	assertSplit(t, `SELECT "a;b" FROM t`, `SELECT "a;b" FROM t`)
}

func TestSplit_EscapedQuote(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT 'it''s fine'", "SELECT 'it''s fine'")
	assertSplit(t, "SELECT 'it''s; fine'; SELECT 2", "SELECT 'it''s; fine'", "SELECT 2")
	assertSplit(t, `SELECT "a""b;c" FROM t; SELECT 2`, `SELECT "a""b;c" FROM t`, "SELECT 2")
}

func TestSplit_EmptyStringLiteral(t *testing.T) {
	t.Parallel()
	// '' right after the opening quote is an escaped quote, so the string stays open
	// until the next lone quote.
	assertSplit(t, "SELECT ''';'; SELECT 2", "SELECT ''';'", "SELECT 2")
}

func TestSplit_OtherQuoteInsideString(t *testing.T) {
	t.Parallel()
	assertSplit(t, `SELECT 'say "hi"; ok'; SELECT 2`, `SELECT 'say "hi"; ok'`, "SELECT 2")
	assertSplit(t, `SELECT "it's; here" FROM t; SELECT 2`, `SELECT "it's; here" FROM t`, "SELECT 2")
}

func TestSplit_LineComment(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT 1 -- a; b\n; SELECT 2", "SELECT 1 -- a; b", "SELECT 2")
	assertSplit(t, "-- DROP TABLE x;\nSELECT 1", "-- DROP TABLE x;\nSELECT 1")
}

func TestSplit_LineCommentEndsAtNewline(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT 1 -- c\n; SELECT 2", "SELECT 1 -- c", "SELECT 2")
}

func TestSplit_BlockComment(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT /* a; b */ 1; SELECT 2", "SELECT /* a; b */ 1", "SELECT 2")
	assertSplit(t, "/* multi\nline; */ SELECT 1", "/* multi\nline; */ SELECT 1")
}

func TestSplit_CommentMarkersInsideString(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT '--'; SELECT 2", "SELECT '--'", "SELECT 2")
	assertSplit(t, "SELECT '/*'; SELECT 2", "SELECT '/*'", "SELECT 2")
}

func TestSplit_QuotesInsideComments(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT 1 /* it's */; SELECT 2", "SELECT 1 /* it's */", "SELECT 2")
	assertSplit(t, "SELECT 1 -- it's\n; SELECT 2", "SELECT 1 -- it's", "SELECT 2")
}

func TestSplit_LineMarkerInsideBlockComment(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT 1 /* -- */; SELECT 2", "SELECT 1 /* -- */", "SELECT 2")
}

func TestSplit_UnterminatedString(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT 1; SELECT 'abc; DELETE FROM t", "SELECT 1", "SELECT 'abc; DELETE FROM t")
}

func TestSplit_UnterminatedBlockComment(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT 1; /* open; DROP TABLE t", "SELECT 1", "/* open; DROP TABLE t")
}

func TestSplit_PreservesOrder(t *testing.T) {
	t.Parallel()
	assertSplit(t, "SELECT 1; INSERT INTO t VALUES (1); SELECT 3",
		"SELECT 1", "INSERT INTO t VALUES (1)", "SELECT 3")
}

func TestSplit_FinalState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		sql  string
		want scanState
	}{
		{"SELECT 1", stateNormal},
		{"SELECT 'abc", stateSingleQuote},
		{`SELECT "abc`, stateDoubleQuote},
		{"SELECT 1 -- tail", stateLineComment},
		{"SELECT 1 /* tail", stateBlockComment},
		{"SELECT 1 -- tail\n", stateNormal},
		{"SELECT 'a''b'", stateNormal},
	}
	for _, tt := range tests {
		s := &splitter{src: tt.sql}
		for s.i < len(s.src) {
			s.step()
		}
		if s.state != tt.want {
			t.Errorf("final state for %q: got %s, want %s", tt.sql, s.state, tt.want)
		}
	}
}

func TestSplit_Idempotent(t *testing.T) {
	t.Parallel()
	sql := "SELECT 'a;b'; /* c; */ SELECT 2 -- d;\n; UPDATE t SET x = 1"
	first := Split(sql)
	second := Split(sql)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Split not deterministic: %q vs %q", first, second)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(first), first)
	}
}
