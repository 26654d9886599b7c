package query

import (
	"errors"

	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

// readVerbs are the statement verbs an ad hoc query may start with.
var readVerbs = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"VALUES":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
}

// writeWords may not appear anywhere in an ad hoc query outside literals,
// quoted identifiers and comments. INTO covers SELECT ... INTO.
var writeWords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"ALTER": true, "CREATE": true, "TRUNCATE": true, "MERGE": true,
	"REPLACE": true, "GRANT": true, "REVOKE": true, "INTO": true,
	"ATTACH": true, "DETACH": true, "VACUUM": true, "CALL": true,
	"EXEC": true, "EXECUTE": true, "COPY": true, "LOCK": true,
	"PRAGMA": true, "UPSERT": true, "RENAME": true, "COMMENT": true,
	"LOAD": true, "HANDLER": true, "REINDEX": true, "CLUSTER": true,
	"REFRESH": true, "DO": true, "SET": true,
}

// explainVerbs are the statements EXPLAIN may describe.
var explainVerbs = map[string]bool{"SELECT": true, "WITH": true, "VALUES": true}

// Classify checks that text is a single read-only statement. It returns a
// QuerySyntaxError for text that cannot be tokenized and a
// DisallowedStatement error for anything that could write. The text is
// lexed with each of the given dialects and must pass all of them; with
// none it must pass every dialect csvdeck knows. A write seen by any
// dialect wins over a syntax error from another.
func Classify(text string, dialects ...connector.Dialect) error {
	if len(dialects) == 0 {
		dialects = connector.Dialects()
	}
	var first error
	for _, d := range dialects {
		tokens, err := tokenize(text, d)
		if err != nil {
			err = model.Errorf(model.KindQuerySyntax, "syntax error: %s", err)
		} else {
			err = classifyTokens(tokens)
		}
		if errors.Is(err, model.ErrDisallowed) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func classifyTokens(tokens []token) error {
	// A trailing semicolon is allowed; anything after one is a second
	// statement.
	for i, t := range tokens {
		if t.typ == tokSemicolon {
			for _, rest := range tokens[i+1:] {
				if rest.typ != tokSemicolon {
					return model.Errorf(model.KindDisallowed, "only a single statement is allowed")
				}
			}
			tokens = tokens[:i]
			break
		}
	}

	verb, at := firstWord(tokens)
	if verb == "" {
		if len(tokens) == 0 {
			return model.Errorf(model.KindQuerySyntax, "query is empty")
		}
		return model.Errorf(model.KindQuerySyntax, "syntax error: statement has no keyword")
	}
	if !readVerbs[verb] {
		return model.Errorf(model.KindDisallowed, "%s statements are not allowed; only read queries can be run", verb)
	}

	for _, t := range tokens {
		if t.typ != tokWord || !writeWords[t.value] {
			continue
		}
		if t.value == "REPLACE" && isCall(tokens, t) {
			continue
		}
		return model.Errorf(model.KindDisallowed, "%s is not allowed; only read queries can be run", t.value)
	}

	if verb == "EXPLAIN" {
		return classifyExplain(tokens[at+1:])
	}
	return nil
}

// classifyExplain checks the statement after EXPLAIN and its options.
// ANALYZE would execute the statement.
func classifyExplain(tokens []token) error {
	for _, t := range tokens {
		if t.typ != tokWord {
			continue
		}
		switch {
		case t.value == "ANALYZE" || t.value == "ANALYSE":
			return model.Errorf(model.KindDisallowed, "EXPLAIN ANALYZE is not allowed")
		case explainVerbs[t.value]:
			return nil
		}
	}
	return model.Errorf(model.KindDisallowed, "EXPLAIN is only allowed for read queries")
}

// firstWord returns the first keyword, skipping leading parentheses as in
// "(SELECT ...) UNION (SELECT ...)".
func firstWord(tokens []token) (string, int) {
	for i, t := range tokens {
		switch t.typ {
		case tokLParen:
			continue
		case tokWord:
			return t.value, i
		default:
			return "", -1
		}
	}
	return "", -1
}

// isCall reports whether the word token t is immediately followed by '(',
// i.e. it is the REPLACE() string function rather than a statement.
func isCall(tokens []token, t token) bool {
	for i := range tokens {
		if tokens[i].pos == t.pos {
			return i+1 < len(tokens) && tokens[i+1].typ == tokLParen
		}
	}
	return false
}
