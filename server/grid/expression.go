package grid

import "strings"

// Expression is a disjunction of textual clauses.
type Expression struct {
	clauses []string
}

func NewExpression() *Expression {
	return &Expression{clauses: make([]string, 0)}
}

func (e *Expression) Or(clause string) *Expression {
	e.clauses = append(e.clauses, clause)
	return e
}

func (e *Expression) Clauses() []string {
	return append([]string{}, e.clauses...)
}

func (e *Expression) Empty() bool {
	return e == nil || len(e.clauses) == 0
}

func (e *Expression) String() string {
	if e.Empty() {
		return ""
	}
	if len(e.clauses) == 1 {
		return e.clauses[0]
	}
	return strings.Join(e.clauses, " OR ")
}
