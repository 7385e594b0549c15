// Package statement splits raw SQL text into top-level statements and
// classifies each one as a read or a write.
//
// It is a heuristic, not a parser: the splitter only tracks quotes and
// comments so that semicolons inside them are not treated as separators, and
// the classifier only looks at the leading keyword (plus a substring scan for
// WITH statements). Everything here is pure and safe for concurrent use.
package statement
