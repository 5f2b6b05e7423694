// ABOUTME: Structural repair pass that rewrites common JSON defects into strictly parseable text.
// ABOUTME: Handles single quotes, bare keys, trailing commas, comments, and truncated/unbalanced documents.
package salvage

import "strings"

// Repair rewrites s so that common authoring and truncation defects no longer
// break a strict JSON parse: single-quoted strings become double-quoted, bare
// object keys are quoted, trailing commas are dropped, // and /* */ comments
// are stripped, and unterminated strings, braces, and brackets are closed.
// The output is only a best effort; callers must still strict-parse it.
func Repair(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 8)

	var stack []byte // open '{' and '[' needing closers
	inString := false
	var quote byte

	i := 0
	for i < len(s) {
		c := s[i]

		if inString {
			switch {
			case c == '\\' && i+1 < len(s):
				next := s[i+1]
				if quote == '\'' && next == '\'' {
					// \' inside a single-quoted string needs no escape once rewritten.
					out.WriteByte('\'')
				} else {
					out.WriteByte('\\')
					out.WriteByte(next)
				}
				i += 2
			case c == quote:
				out.WriteByte('"')
				inString = false
				i++
			case c == '"' && quote == '\'':
				out.WriteString(`\"`)
				i++
			case c == '\n':
				out.WriteString(`\n`)
				i++
			case c == '\t':
				out.WriteString(`\t`)
				i++
			default:
				out.WriteByte(c)
				i++
			}
			continue
		}

		switch {
		case c == '"' || c == '\'':
			inString = true
			quote = c
			out.WriteByte('"')
			i++

		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += 2 + end + 2
			}

		case c == '{' || c == '[':
			stack = append(stack, c)
			out.WriteByte(c)
			i++

		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			out.WriteByte(c)
			i++

		case c == ',':
			// Drop the comma when the next structural token closes the
			// container (trailing comma) or the document is truncated here.
			if j := nextToken(s, i+1); j < 0 || s[j] == '}' || s[j] == ']' {
				i++
			} else {
				out.WriteByte(c)
				i++
			}

		case isBareStart(c):
			j := i
			for j < len(s) && isBareChar(s[j]) {
				j++
			}
			token := s[i:j]
			k := nextToken(s, j)
			switch {
			case k >= 0 && s[k] == ':':
				// Bare object key.
				out.WriteByte('"')
				out.WriteString(token)
				out.WriteByte('"')
			case token == "true" || token == "false" || token == "null":
				out.WriteString(token)
			default:
				// Bare string value.
				out.WriteByte('"')
				out.WriteString(token)
				out.WriteByte('"')
			}
			i = j

		default:
			out.WriteByte(c)
			i++
		}
	}

	if inString {
		out.WriteByte('"')
	}
	for n := len(stack) - 1; n >= 0; n-- {
		if stack[n] == '{' {
			out.WriteByte('}')
		} else {
			out.WriteByte(']')
		}
	}

	return out.String()
}

// nextToken returns the index of the next non-whitespace, non-comment byte at
// or after i, or -1 if none remains.
func nextToken(s string, i int) int {
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return -1
			}
			i += 2 + end + 2
		default:
			return i
		}
	}
	return -1
}

func isBareStart(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isBareChar(c byte) bool {
	return isBareStart(c) || (c >= '0' && c <= '9') || c == '-' || c == '.'
}
