package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/csvdeck/csvdeck/internal/connector"
)

type tokenType int

const (
	tokWord   tokenType = iota
	tokQuoted           // "ident", `ident`, [ident]
	tokString           // 'literal', $tag$literal$tag$, q'[literal]'
	tokNumber
	tokLParen
	tokRParen
	tokSemicolon
	tokOther // operators and punctuation
)

type token struct {
	typ   tokenType
	value string // words are uppercased
	pos   int    // byte offset, for error messages
}

// tokenize splits a SQL statement into tokens, dropping whitespace and
// comments. It only understands enough SQL to tell keywords apart from
// literals, quoted identifiers and comments; it does not parse.
//
// What is code and what is not depends on the dialect, so callers lex with
// the rules of the store the text will run on. A '$' that does not open a
// literal the dialect knows is rejected rather than guessed at.
func tokenize(input string, d connector.Dialect) ([]token, error) {
	var tokens []token
	depth := 0
	i, n := 0, len(input)

	for i < n {
		ch := input[i]

		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v' {
			i++
			continue
		}

		// Line comment.
		if (ch == '-' && i+1 < n && input[i+1] == '-' && (!d.MySQL || i+2 >= n || input[i+2] <= ' ')) ||
			(d.MySQL && ch == '#') ||
			(d.SlashComments && ch == '/' && i+1 < n && input[i+1] == '/') {
			for i < n && input[i] != '\n' {
				i++
			}
			continue
		}

		// MySQL executable comment: lex the body as code.
		if d.MySQL && strings.HasPrefix(input[i:], "/*!") {
			i += 3
			for i < n && input[i] >= '0' && input[i] <= '9' {
				i++
			}
			continue
		}

		// Block comment.
		if ch == '/' && i+1 < n && input[i+1] == '*' {
			end := strings.Index(input[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment starting at position %d", i)
			}
			i += end + 4
			continue
		}

		// PostgreSQL escape string: E'...'.
		if d.EscapeStrings && (ch == 'E' || ch == 'e') && i+1 < n && input[i+1] == '\'' {
			end, err := closeQuote(input, i+1, '\'', true)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokString, value: input[i:end], pos: i})
			i = end
			continue
		}

		// Oracle alternative quoting: q'X...X' and nq'X...X'.
		if d.QQuotes {
			if open := qQuoteStart(input[i:]); open > 0 {
				end, err := closeQQuote(input, i, i+open)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, token{typ: tokString, value: input[i:end], pos: i})
				i = end
				continue
			}
		}

		switch ch {
		case '(':
			depth++
			tokens = append(tokens, token{typ: tokLParen, value: "(", pos: i})
			i++
			continue
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ')' at position %d", i)
			}
			tokens = append(tokens, token{typ: tokRParen, value: ")", pos: i})
			i++
			continue
		case ';':
			tokens = append(tokens, token{typ: tokSemicolon, value: ";", pos: i})
			i++
			continue
		case '\'':
			end, err := closeQuote(input, i, '\'', d.MySQL || d.BackslashStrings)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokString, value: input[i:end], pos: i})
			i = end
			continue
		case '"', '`':
			end, err := closeQuote(input, i, ch, d.MySQL && ch == '"')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokQuoted, value: input[i:end], pos: i})
			i = end
			continue
		case '[':
			if d.Brackets {
				end, err := closeQuote(input, i, ']', false)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, token{typ: tokQuoted, value: input[i:end], pos: i})
				i = end
				continue
			}
		case '$':
			tag, ok := dollarTag(input[i:])
			if !ok || !d.DollarQuotes || (tag != "$$" && !d.NamedDollarTags) {
				return nil, fmt.Errorf("unexpected '$' at position %d", i)
			}
			end := strings.Index(input[i+len(tag):], tag)
			if end < 0 {
				return nil, fmt.Errorf("unterminated dollar-quoted string starting at position %d", i)
			}
			stop := i + len(tag) + end + len(tag)
			tokens = append(tokens, token{typ: tokString, value: input[i:stop], pos: i})
			i = stop
			continue
		}

		if ch >= '0' && ch <= '9' {
			start := i
			for i < n && (isWordByte(input[i]) || input[i] == '.') {
				i++
			}
			tokens = append(tokens, token{typ: tokNumber, value: input[start:i], pos: start})
			continue
		}

		if r, size := utf8.DecodeRuneInString(input[i:]); r == '_' || unicode.IsLetter(r) {
			start := i
			i += size
			for i < n {
				r, size := utf8.DecodeRuneInString(input[i:])
				if r != '_' && r != '$' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			tokens = append(tokens, token{typ: tokWord, value: strings.ToUpper(input[start:i]), pos: start})
			continue
		}

		_, size := utf8.DecodeRuneInString(input[i:])
		tokens = append(tokens, token{typ: tokOther, value: input[i : i+size], pos: i})
		i += size
	}

	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses: %d unclosed '('", depth)
	}
	return tokens, nil
}

// closeQuote returns the offset just past the quote q that closes the one
// at start. A doubled q is an escape, and so is a backslash when backslash
// is set.
func closeQuote(input string, start int, q byte, backslash bool) (int, error) {
	for i := start + 1; i < len(input); i++ {
		if backslash && input[i] == '\\' {
			i++
			continue
		}
		if input[i] != q {
			continue
		}
		if i+1 < len(input) && input[i+1] == q {
			i++
			continue
		}
		return i + 1, nil
	}
	what := "string literal"
	if q != '\'' {
		what = "quoted identifier"
	}
	return 0, fmt.Errorf("unterminated %s starting at position %d", what, start)
}

// qQuoteStart returns the length of an Oracle alternative quote opener
// (q' or nq' plus the delimiter) at the start of s, or 0.
func qQuoteStart(s string) int {
	i := 0
	if len(s) > 0 && (s[0] == 'n' || s[0] == 'N') {
		i++
	}
	if len(s) < i+3 || (s[i] != 'q' && s[i] != 'Q') || s[i+1] != '\'' {
		return 0
	}
	if d := s[i+2]; d == ' ' || d == '\t' || d == '\n' || d == '\r' || d == '\'' {
		return 0
	}
	return i + 3
}

// closeQQuote returns the offset just past the X' that closes the
// alternative quote opened at start, whose body begins at body.
func closeQQuote(input string, start, body int) (int, error) {
	closer := input[body-1]
	switch closer {
	case '[':
		closer = ']'
	case '{':
		closer = '}'
	case '(':
		closer = ')'
	case '<':
		closer = '>'
	}
	for i := body; i+1 < len(input); i++ {
		if input[i] == closer && input[i+1] == '\'' {
			return i + 2, nil
		}
	}
	return 0, fmt.Errorf("unterminated string literal starting at position %d", start)
}

// dollarTag returns the opening tag of a dollar-quoted string at the start
// of s. Positional parameters like $1 are not tags.
func dollarTag(s string) (string, bool) {
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[:i+1], true
		}
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 1 && c >= '0' && c <= '9')) {
			return "", false
		}
	}
	return "", false
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
