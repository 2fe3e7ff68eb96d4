// Package sqlbuild composes a fixed core statement with an optional
// unit-range predicate and bound parameters. It keeps the transforms'
// interface to the store narrow: no SQL string concatenation at call sites.
package sqlbuild

import "strings"

// Statement is a core SQL text plus bound arguments. The core may contain a
// {{where}} placeholder marking where the optional predicate goes; without
// the placeholder the predicate is appended.
type Statement struct {
	core  string
	where []string
	args  []interface{}
}

// New creates a statement from the fixed core query.
func New(core string) *Statement {
	return &Statement{core: core}
}

// Where adds a predicate with its bound arguments. Multiple predicates are
// joined with AND.
func (s *Statement) Where(predicate string, args ...interface{}) *Statement {
	s.where = append(s.where, predicate)
	s.args = append(s.args, args...)
	return s
}

// UnitRange adds the standard inclusive range predicate on a unit column.
func (s *Statement) UnitRange(column string, lower, upper interface{}) *Statement {
	return s.Where(column+" BETWEEN ? AND ?", lower, upper)
}

// SQL renders the final statement text.
func (s *Statement) SQL() string {
	if len(s.where) == 0 {
		return strings.Replace(s.core, "{{where}}", "", 1)
	}
	clause := "WHERE " + strings.Join(s.where, " AND ")
	if strings.Contains(s.core, "{{where}}") {
		return strings.Replace(s.core, "{{where}}", clause, 1)
	}
	return s.core + " " + clause
}

// Args returns the bound arguments in predicate order.
func (s *Statement) Args() []interface{} {
	return s.args
}
