package guard

import "regexp"

// suspiciousPattern is a known SQL injection fingerprint. Matches are logged,
// never rejected.
type suspiciousPattern struct {
	pattern     *regexp.Regexp
	description string
}

var suspiciousPatterns = []suspiciousPattern{
	{regexp.MustCompile(`(?i);\s*drop\s`), "stacked DROP after semicolon"},
	{regexp.MustCompile(`(?i);\s*delete\s`), "stacked DELETE after semicolon"},
	{regexp.MustCompile(`(?i)union\s+all\s+select\s+null`), "UNION ALL SELECT NULL probe"},
	{regexp.MustCompile(`(?is)/\*.*drop.*\*/`), "DROP wrapped in block comment"},
	{regexp.MustCompile(`(?i)xp_cmdshell`), "xp_cmdshell invocation"},
	{regexp.MustCompile(`(?i)exec\s*\(`), "dynamic exec( call"},
}

// Match is a suspicious pattern found in a query.
type Match struct {
	Pattern     string
	Description string
}

// SuspiciousMatches returns every suspicious pattern found in sql, in list order.
// Returns nil if nothing matched.
func SuspiciousMatches(sql string) []Match {
	var matches []Match
	for _, p := range suspiciousPatterns {
		if p.pattern.MatchString(sql) {
			matches = append(matches, Match{Pattern: p.pattern.String(), Description: p.description})
		}
	}
	return matches
}
