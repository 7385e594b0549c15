package statement

import "strings"

// scanState is the splitter's position relative to strings and comments.
// Exactly one state holds at every byte of the input.
type scanState int

const (
	stateNormal scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateLineComment
	stateBlockComment
)

func (s scanState) String() string {
	switch s {
	case stateNormal:
		return "normal"
	case stateSingleQuote:
		return "single-quote string"
	case stateDoubleQuote:
		return "double-quote string"
	case stateLineComment:
		return "line comment"
	case stateBlockComment:
		return "block comment"
	}
	return "unknown"
}

// splitter holds the scan state for one Split call.
type splitter struct {
	src   string
	i     int
	state scanState
	buf   strings.Builder
	out   []string
}

// Split breaks sql into top-level statements on semicolons that are outside
// string literals, quoted identifiers and comments. Statements are trimmed and
// empty ones dropped. Comments stay in the statement text.
//
// Split never fails: an unterminated string or comment simply runs to the end
// of the input and whatever was collected becomes the last statement.
func Split(sql string) []string {
	s := &splitter{src: sql}
	for s.i < len(s.src) {
		s.step()
	}
	s.flush()
	return s.out
}

func (s *splitter) peek() byte {
	if s.i+1 < len(s.src) {
		return s.src[s.i+1]
	}
	return 0
}

// copy appends n bytes from the cursor to the buffer and advances past them.
func (s *splitter) copy(n int) {
	s.buf.WriteString(s.src[s.i : s.i+n])
	s.i += n
}

func (s *splitter) flush() {
	stmt := strings.TrimSpace(s.buf.String())
	if stmt != "" {
		s.out = append(s.out, stmt)
	}
	s.buf.Reset()
}

func (s *splitter) step() {
	c := s.src[s.i]
	switch s.state {
	case stateNormal:
		switch {
		case c == '/' && s.peek() == '*':
			s.copy(2)
			s.state = stateBlockComment
		case c == '-' && s.peek() == '-':
			s.copy(2)
			s.state = stateLineComment
		case c == '\'':
			s.copy(1)
			s.state = stateSingleQuote
		case c == '"':
			s.copy(1)
			s.state = stateDoubleQuote
		case c == ';':
			s.i++
			s.flush()
		default:
			s.copy(1)
		}

	case stateSingleQuote, stateDoubleQuote:
		delim := byte('\'')
		if s.state == stateDoubleQuote {
			delim = '"'
		}
		switch {
		case c == delim && s.peek() == delim:
			s.copy(2)
		case c == delim:
			s.copy(1)
			s.state = stateNormal
		default:
			s.copy(1)
		}

	case stateLineComment:
		s.copy(1)
		if c == '\n' {
			s.state = stateNormal
		}

	case stateBlockComment:
		if c == '*' && s.peek() == '/' {
			s.copy(2)
			s.state = stateNormal
			return
		}
		s.copy(1)
	}
}
