package db

import (
	"fmt"
	"sort"
	"strings"
)

// DebugDumpParams describes the statement text, the SQL sent to the driver
// and every bound parameter. The format is meant for humans only.
func (s *Stmt) DebugDumpParams() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SQL: [%d] %s\n", len(s.query), s.query)
	if sent := s.named.QueryString; sent != s.query {
		fmt.Fprintf(&b, "Sent SQL: [%d] %s\n", len(sent), sent)
	}
	fmt.Fprintf(&b, "Params:  %d\n", len(s.byName)+len(s.byPos))

	for _, name := range s.nameOrder() {
		p := s.byName[name]
		key := ":" + name
		fmt.Fprintf(&b, "Key: Name: [%d] %s\n", len(key), key)
		fmt.Fprintf(&b, "paramno=-1\nname=[%d] %q\nis_param=1\nparam_type=%s\n", len(key), key, p.typ)
	}

	positions := make([]int, 0, len(s.byPos))
	for pos := range s.byPos {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for _, pos := range positions {
		p := s.byPos[pos]
		fmt.Fprintf(&b, "Key: Position #%d:\n", pos-1)
		fmt.Fprintf(&b, "paramno=%d\nname=[0] \"\"\nis_param=1\nparam_type=%s\n", pos-1, p.typ)
	}
	return b.String()
}

// nameOrder lists bound names in placeholder order, then any names the
// statement does not use, sorted.
func (s *Stmt) nameOrder() []string {
	seen := make(map[string]bool, len(s.byName))
	out := make([]string, 0, len(s.byName))
	for _, name := range s.named.Params {
		if _, ok := s.byName[name]; ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var rest []string
	for name := range s.byName {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
