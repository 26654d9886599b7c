package infer

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLen is the longest identifier produced, in bytes. It is the
// PostgreSQL limit and fits every other supported store.
const MaxIdentifierLen = 63

const bom = "\ufeff"

// reserved words get a "_col" suffix so the column can be referenced
// unquoted in ad hoc queries.
var reserved = map[string]bool{
	"all": true, "and": true, "as": true, "asc": true, "between": true, "by": true,
	"case": true, "check": true, "column": true, "constraint": true, "create": true,
	"cross": true, "default": true, "delete": true, "desc": true, "distinct": true,
	"drop": true, "else": true, "end": true, "except": true, "exists": true,
	"false": true, "fetch": true, "for": true, "foreign": true, "from": true,
	"full": true, "grant": true, "group": true, "having": true, "in": true,
	"index": true, "inner": true, "insert": true, "intersect": true, "into": true,
	"is": true, "join": true, "key": true, "left": true, "like": true, "limit": true,
	"not": true, "null": true, "offset": true, "on": true, "or": true, "order": true,
	"outer": true, "primary": true, "references": true, "right": true, "select": true,
	"set": true, "table": true, "then": true, "to": true, "true": true, "union": true,
	"unique": true, "update": true, "using": true, "values": true, "when": true,
	"where": true, "with": true,
}

// foldAccents strips combining marks after canonical decomposition, so
// "Größe" and "café" become "Große" and "cafe".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeIdentifier converts an arbitrary header or file name into a
// lowercase identifier made of [a-z0-9_]. It returns "" when nothing
// usable remains. Applying it to its own output is a no-op.
func NormalizeIdentifier(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), bom)
	s = strings.ToLower(foldAccents(s))

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "c_" + out
	}
	if reserved[out] {
		out += "_col"
	}
	return truncate(out, MaxIdentifierLen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "_")
}

// NormalizeHeaders normalizes every header and resolves collisions by
// appending _2, _3 and so on. Headers that normalize to nothing are named
// column_<n> after their 1-based position.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	taken := make(map[string]bool, len(headers))

	// Reserve names that are already unique and normalized first, so that
	// re-normalizing a previous result keeps every name in place.
	base := make([]string, len(headers))
	for i, h := range headers {
		n := NormalizeIdentifier(h)
		if n == "" {
			n = "column_" + strconv.Itoa(i+1)
		}
		base[i] = n
	}
	for i, n := range base {
		if !taken[n] {
			taken[n] = true
			out[i] = n
		}
	}
	for i, n := range base {
		if out[i] != "" {
			continue
		}
		for k := 2; ; k++ {
			suffix := "_" + strconv.Itoa(k)
			cand := truncate(n, MaxIdentifierLen-len(suffix)) + suffix
			if !taken[cand] {
				taken[cand] = true
				out[i] = cand
				break
			}
		}
	}
	return out
}

// TableName derives a table name from an uploaded file name: the base name
// without its extension, normalized like a header.
func TableName(fileName string) string {
	name := fileName
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return NormalizeIdentifier(name)
}
