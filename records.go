package db

import (
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"
)

// Record is one result row keyed by column name.
type Record map[string]any

// rowKeywords are the leading keywords of statements that produce a result
// set and therefore run with Query instead of Exec.
var rowKeywords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"WITH":     true,
	"VALUES":   true,
	"TABLE":    true,
	"PRAGMA":   true,
	"CALL":     true,
}

// returnsRows reports whether query produces a result set, judged by its
// first keyword after leading whitespace, comments and parentheses, or by a
// top-level RETURNING clause on a data-modifying statement.
func returnsRows(query string) bool {
	return rowKeywords[leadingKeyword(query)] || hasClause(query, "RETURNING")
}

// hasClause reports whether keyword appears in query as a whole word outside
// string literals, quoted identifiers, comments and parentheses.
func hasClause(query, keyword string) bool {
	depth := 0
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := strings.IndexByte(query[i+1:], c)
			if j < 0 {
				return false
			}
			i += j + 2
		case c == '#' || strings.HasPrefix(query[i:], "--"):
			j := strings.IndexByte(query[i:], '\n')
			if j < 0 {
				return false
			}
			i += j + 1
		case strings.HasPrefix(query[i:], "/*"):
			j := strings.Index(query[i+2:], "*/")
			if j < 0 {
				return false
			}
			i += j + 4
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			i++
		case isWordByte(c):
			j := i
			for j < len(query) && isWordByte(query[j]) {
				j++
			}
			if depth == 0 && strings.EqualFold(query[i:j], keyword) {
				return true
			}
			i = j
		default:
			i++
		}
	}
	return false
}

func isWordByte(c byte) bool {
	switch {
	case c == '_', c == '$':
		return true
	case '0' <= c && c <= '9', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		return true
	}
	return false
}

func leadingKeyword(query string) string {
	q := query
	for {
		q = strings.TrimLeftFunc(q, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
		switch {
		case strings.HasPrefix(q, "--"), strings.HasPrefix(q, "#"):
			i := strings.IndexByte(q, '\n')
			if i < 0 {
				return ""
			}
			q = q[i+1:]
		case strings.HasPrefix(q, "/*"):
			i := strings.Index(q, "*/")
			if i < 0 {
				return ""
			}
			q = q[i+2:]
		default:
			end := strings.IndexFunc(q, func(r rune) bool { return !unicode.IsLetter(r) })
			if end < 0 {
				end = len(q)
			}
			return strings.ToUpper(q[:end])
		}
	}
}

// scanRecords drains rows into records. Text columns the driver hands back
// as []byte are returned as strings.
func scanRecords(rows *sqlx.Rows) ([]string, []Record, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	records := []Record{}
	for rows.Next() {
		m := make(map[string]any, len(columns))
		if err := rows.MapScan(m); err != nil {
			return nil, nil, err
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		records = append(records, Record(m))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, records, nil
}
