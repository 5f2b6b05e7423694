// ABOUTME: Display-only SQL reflow that uppercases keywords and breaks lines at major clauses.
// ABOUTME: Never fails visibly; any problem falls back to returning the query text untouched.
package classify

import "strings"

// sqlKeywords are uppercased during formatting.
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "by": true,
	"order": true, "having": true, "limit": true, "offset": true,
	"join": true, "left": true, "right": true, "inner": true, "outer": true,
	"full": true, "cross": true, "on": true, "as": true, "and": true,
	"or": true, "not": true, "in": true, "is": true, "null": true,
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"union": true, "all": true, "distinct": true, "between": true,
	"like": true, "asc": true, "desc": true, "count": true, "sum": true,
	"avg": true, "min": true, "max": true, "extract": true, "date_trunc": true,
}

// clauseStart tokens begin a new line.
var clauseStart = map[string]bool{
	"select": true, "from": true, "where": true, "group": true,
	"order": true, "having": true, "limit": true, "union": true,
	"join": true, "left": true, "right": true, "inner": true, "full": true,
	"cross": true,
}

// FormatSQL reflows a SQL query for display: keywords uppercased, major
// clauses on their own lines. Formatting is cosmetic; if anything goes wrong
// the raw query is returned so display is never blocked.
func FormatSQL(q string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = q
		}
	}()

	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return q
	}

	tokens := sqlTokens(trimmed)
	if len(tokens) == 0 {
		return q
	}

	var b strings.Builder
	prevWasClause := false
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		word := tok
		if sqlKeywords[lower] && !tokenQuoted(tok) {
			word = strings.ToUpper(tok)
		}

		switch {
		case i == 0:
			b.WriteString(word)
		case clauseStart[lower] && !prevWasClause:
			b.WriteByte('\n')
			b.WriteString(word)
		default:
			b.WriteByte(' ')
			b.WriteString(word)
		}

		// "GROUP BY" and "LEFT JOIN" stay on one line: a clause-start token
		// suppresses a break before its immediate follower.
		prevWasClause = clauseStart[lower] && (lower == "group" || lower == "order" ||
			lower == "left" || lower == "right" || lower == "inner" || lower == "full" ||
			lower == "cross")
	}
	return b.String()
}

// tokenQuoted reports whether a token is a quoted literal or identifier.
func tokenQuoted(tok string) bool {
	return len(tok) > 0 && (tok[0] == '\'' || tok[0] == '"' || tok[0] == '`')
}

// sqlTokens splits SQL on whitespace while keeping quoted literals whole.
func sqlTokens(q string) []string {
	var tokens []string
	var cur strings.Builder
	var quote byte

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			cur.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}
