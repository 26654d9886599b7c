package connector

import "slices"

// Dialect describes the lexical rules of a store's SQL that decide what is
// code and what is a literal, and how the store confines a caller's
// statement to reads.
type Dialect struct {
	// MySQL: backslash escapes in '...' and "...", '#' line comments, "--"
	// only before whitespace, and /*! */ comments whose body is executed.
	MySQL bool
	// BackslashStrings: backslash escapes inside '...' (Snowflake).
	BackslashStrings bool
	// EscapeStrings: E'...' literals with backslash escapes (PostgreSQL).
	EscapeStrings bool
	// DollarQuotes: $$...$$ literals. NamedDollarTags also allows $tag$.
	DollarQuotes    bool
	NamedDollarTags bool
	// Brackets: [identifier] quoting with ]] as escape.
	Brackets bool
	// SlashComments: "//" line comments (Snowflake).
	SlashComments bool
	// QQuotes: Oracle alternative quoting, q'[...]' and nq'[...]'.
	QQuotes bool

	ReadOnly ReadOnlyMode
}

// ReadOnlyMode is how ad hoc statements are kept from writing once they
// reach the store.
type ReadOnlyMode int

const (
	// ReadOnlyTx runs the statement in a READ ONLY transaction.
	ReadOnlyTx ReadOnlyMode = iota
	// ReadOnlySetTx opens a transaction with SET TRANSACTION READ ONLY.
	ReadOnlySetTx
	// ReadOnlyQueryOnly pins a connection with PRAGMA query_only.
	ReadOnlyQueryOnly
	// ReadOnlyRollback runs the statement in a transaction that is always
	// rolled back, for stores without read-only transactions.
	ReadOnlyRollback
)

var dialects = map[string]Dialect{
	"sqlite":    {Brackets: true, ReadOnly: ReadOnlyQueryOnly},
	"postgres":  {EscapeStrings: true, DollarQuotes: true, NamedDollarTags: true, ReadOnly: ReadOnlyTx},
	"mysql":     {MySQL: true, ReadOnly: ReadOnlyTx},
	"mssql":     {Brackets: true, ReadOnly: ReadOnlyRollback},
	"snowflake": {BackslashStrings: true, DollarQuotes: true, SlashComments: true, ReadOnly: ReadOnlyRollback},
	"oracle":    {QQuotes: true, ReadOnly: ReadOnlySetTx},
}

// DialectFor returns the dialect of a registered driver. ok is false for
// drivers csvdeck does not know; callers must then assume every rule.
func DialectFor(driver string) (d Dialect, ok bool) {
	d, ok = dialects[driver]
	return d, ok
}

// Dialects returns every known dialect, ordered by driver name.
func Dialects() []Dialect {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]Dialect, 0, len(names))
	for _, name := range names {
		out = append(out, dialects[name])
	}
	return out
}
