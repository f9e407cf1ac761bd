package rql

import (
	"bytes"
	"crudconsole/logger"
	"crudconsole/server/orient"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	rqlParser "github.com/Q-CIS-DEV/go-rql-parser"
)

//https://doc.apsstandard.org/2.1/spec/rql/
//Filters are rendered as OrientDB SQL; link traversal uses the native dot notation.

// Query is the translated form of an RQL expression.
type Query struct {
	Where  string
	Sort   []SortField
	Limit  int
	Offset int
}

type SortField struct {
	Field string
	Desc  bool
}

// Apply copies the translated clauses onto a SELECT.
func (q *Query) Apply(s *orient.SelectQuery) *orient.SelectQuery {
	if q.Where != "" {
		s.Where(q.Where)
	}
	for _, sort := range q.Sort {
		s.OrderBy(sort.Field, sort.Desc)
	}
	if q.Offset > 0 {
		s.Skip(q.Offset)
	}
	if q.Limit > 0 {
		s.Limit(q.Limit)
	}
	return s
}

type Translator struct {
	properties map[string]orient.Property
}

// NewTranslator checks filtered properties against the class properties.
func NewTranslator(properties []orient.Property) *Translator {
	t := &Translator{properties: make(map[string]orient.Property, len(properties))}
	for _, p := range properties {
		t.properties[p.Name] = p
	}
	t.properties["@rid"] = orient.Property{Name: "@rid", Type: "LINK"}
	return t
}

// Translate parses and translates the RQL string, an empty string yields an empty query.
func (t *Translator) Translate(rql string) (*Query, error) {
	if strings.TrimSpace(rql) == "" {
		return &Query{}, nil
	}
	root, err := rqlParser.NewParser().Parse(rql)
	if err != nil {
		return nil, NewRqlError(ErrRQLWrong, "Can't parse '%s': %s", rql, err.Error())
	}
	return t.query(root)
}

func (t *Translator) query(root *rqlParser.RqlRootNode) (*Query, error) {
	query := &Query{}
	if root.Node != nil {
		where, err := t.nodeToExpr(root.Node)
		if err != nil {
			return nil, err
		}
		query.Where = where
	}

	for _, sort := range root.Sort() {
		if _, err := t.fieldPath(sort.By); err != nil {
			return nil, err
		}
		query.Sort = append(query.Sort, SortField{Field: sort.By, Desc: sort.Desc})
	}

	var err error
	if query.Limit, err = number(root.Limit(), "limit"); err != nil {
		return nil, err
	}
	if query.Offset, err = number(root.Offset(), "offset"); err != nil {
		return nil, err
	}
	return query, nil
}

func number(value string, name string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, NewRqlError(ErrRQLWrongValue, "Wrong %s value '%s'", name, value)
	}
	return n, nil
}

type operator func(t *Translator, args []interface{}) (string, error)
type valueFunc func([]interface{}) (interface{}, error)

var operators = map[string]operator{}
var valueFuncs = map[string]valueFunc{}

func init() {
	operators["AND"] = and
	operators["OR"] = or
	operators["NOT"] = not
	operators["EQ"] = comparison("=", 2)
	operators["NE"] = comparison("<>", 2)
	operators["LT"] = comparison("<", 2)
	operators["LE"] = comparison("<=", 2)
	operators["GT"] = comparison(">", 2)
	operators["GE"] = comparison(">=", 2)
	operators["LIKE"] = comparison("LIKE", 2)
	operators["IN"] = in
	operators["CONTAINS"] = comparison("CONTAINS", 2)

	valueFuncs["NULL"] = func([]interface{}) (interface{}, error) { return nil, nil }
	valueFuncs["EMPTY"] = func([]interface{}) (interface{}, error) { return "", nil }
	valueFuncs["TRUE"] = func([]interface{}) (interface{}, error) { return true, nil }
	valueFuncs["FALSE"] = func([]interface{}) (interface{}, error) { return false, nil }
}

func (t *Translator) nodeToExpr(node *rqlParser.RqlNode) (string, error) {
	op, ok := operators[strings.ToUpper(node.Op)]
	if !ok {
		return "", NewRqlError(ErrRQLUnknownOperator, "RQL operator '%s' is unknown", node.Op)
	}
	return op(t, node.Args)
}

func (t *Translator) argToExpr(arg interface{}) (string, error) {
	node, ok := arg.(*rqlParser.RqlNode)
	if !ok {
		logger.Error("Can't convert argument '%v' to expression", arg)
		return "", NewRqlError(ErrRQLWrong, "Unexpected argument: %v", arg)
	}
	return t.nodeToExpr(node)
}

func (t *Translator) argsToExpr(args []interface{}, sep string) (string, error) {
	if len(args) == 0 {
		return "", NewRqlError(ErrRQLWrong, "Expected at least one argument")
	}
	b := bytes.NewBufferString("(")
	for i := range args {
		e, err := t.argToExpr(args[i])
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(e)
	}
	b.WriteRune(')')
	return b.String(), nil
}

var pathPattern = regexp.MustCompile(`^[@A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// fieldPath validates the path and returns the property of its first segment.
func (t *Translator) fieldPath(path string) (orient.Property, error) {
	if !pathPattern.MatchString(path) {
		return orient.Property{}, NewRqlError(ErrRQLWrongFieldName, "Field path '%s' is incorrect", path)
	}
	segments := strings.Split(path, ".")
	property, ok := t.properties[segments[0]]
	if !ok {
		return orient.Property{}, NewRqlError(ErrRQLWrongFieldName, "Class doesn't have '%s' property", segments[0])
	}
	if len(segments) > 1 {
		if !isLink(property.Type) {
			return orient.Property{}, NewRqlError(ErrRQLWrongFieldName, "Property '%s' is not a link", segments[0])
		}
		// the linked class is not known here, compare as text
		return orient.Property{Name: path, Type: "STRING"}, nil
	}
	return property, nil
}

func isLink(propertyType string) bool {
	switch strings.ToUpper(propertyType) {
	case "LINK", "LINKSET", "LINKLIST", "LINKMAP":
		return true
	}
	return false
}

func argToValue(arg interface{}, property orient.Property) (interface{}, error) {
	switch v := arg.(type) {
	case *rqlParser.RqlNode:
		vf, ok := valueFuncs[strings.ToUpper(v.Op)]
		if !ok {
			return nil, NewRqlError(ErrRQLUnknownValueFunc, "Value function '%s' is unknown", v.Op)
		}
		return vf(v.Args)
	case string:
		unescaped, err := url.QueryUnescape(v)
		if err != nil {
			return nil, NewRqlError(ErrRQLWrongValue, "Can't unescape '%s' value: %s", v, err.Error())
		}
		return valueFromString(unescaped, property)
	default:
		return nil, NewRqlError(ErrRQLWrongValue, "Unknown operator's value type: '%v'", v)
	}
}

func valueFromString(value string, property orient.Property) (interface{}, error) {
	switch strings.ToUpper(property.Type) {
	case "INTEGER", "LONG", "SHORT", "BYTE", "DOUBLE", "FLOAT", "DECIMAL":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, NewRqlError(ErrRQLWrongValue, "Value '%s' is wrong. Expected: %s", value, property.Type)
		}
		return n, nil
	case "BOOLEAN":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, NewRqlError(ErrRQLWrongValue, "Value '%s' is wrong. Expected: %s", value, property.Type)
		}
		return b, nil
	case "LINK", "LINKSET", "LINKLIST", "LINKMAP":
		rid, err := orient.ParseRID(value)
		if err != nil {
			return nil, NewRqlError(ErrRQLWrongValue, "Value '%s' is wrong. Expected: record identifier", value)
		}
		return rid, nil
	default:
		return value, nil
	}
}

func and(t *Translator, args []interface{}) (string, error) {
	return t.argsToExpr(args, " AND ")
}

func or(t *Translator, args []interface{}) (string, error) {
	return t.argsToExpr(args, " OR ")
}

func not(t *Translator, args []interface{}) (string, error) {
	if len(args) != 1 {
		return "", NewRqlError(ErrRQLWrong, "Expected only one argument for '%s' rql function but founded '%d'", "not", len(args))
	}
	e, err := t.argToExpr(args[0])
	if err != nil {
		return "", err
	}
	return "NOT (" + e + ")", nil
}

func comparison(sqlOperator string, arity int) operator {
	return func(t *Translator, args []interface{}) (string, error) {
		if len(args) != arity {
			return "", NewRqlError(ErrRQLWrong, "Expected %d arguments for '%s' but founded '%d'", arity, sqlOperator, len(args))
		}
		path, ok := args[0].(string)
		if !ok {
			return "", NewRqlError(ErrRQLWrongFieldName, "The field name is not string")
		}
		property, err := t.fieldPath(path)
		if err != nil {
			return "", err
		}
		value, err := argToValue(args[1], property)
		if err != nil {
			return "", err
		}
		if value == nil {
			switch sqlOperator {
			case "=":
				return path + " IS NULL", nil
			case "<>":
				return path + " IS NOT NULL", nil
			default:
				return "", NewRqlError(ErrRQLWrongValue, "Operator '%s' doesn't support NULL value", sqlOperator)
			}
		}
		return path + " " + sqlOperator + " " + orient.Literal(value), nil
	}
}

func in(t *Translator, args []interface{}) (string, error) {
	if len(args) < 2 {
		return "", NewRqlError(ErrRQLWrong, "Expected more then one argument for '%s' rql function but founded '%d'", "in", len(args))
	}
	path, ok := args[0].(string)
	if !ok {
		return "", NewRqlError(ErrRQLWrongFieldName, "The field name is not string")
	}
	property, err := t.fieldPath(path)
	if err != nil {
		return "", err
	}
	values := make([]interface{}, 0, len(args)-1)
	for _, arg := range args[1:] {
		v, err := argToValue(arg, property)
		if err != nil {
			return "", err
		}
		values = append(values, v)
	}
	return path + " IN " + orient.Literal(values), nil
}
