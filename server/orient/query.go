package orient

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// SelectQuery builds OrientDB SQL SELECT statements.
type SelectQuery struct {
	fields []string
	from   string
	where  []string
	order  []string
	skip   int
	limit  int
}

func Select(fields ...string) *SelectQuery {
	return &SelectQuery{fields: fields, limit: -1}
}

func (q *SelectQuery) From(target string) *SelectQuery {
	q.from = target
	return q
}

// FromRIDs selects the given records directly: "SELECT FROM [#1:1, #1:2]".
func (q *SelectQuery) FromRIDs(rids []RID) *SelectQuery {
	q.from = "[" + strings.Join(RIDStrings(rids), ", ") + "]"
	return q
}

// Where adds a condition joined with AND; every '?' is replaced by the
// literal of the next argument.
func (q *SelectQuery) Where(condition string, args ...interface{}) *SelectQuery {
	if len(args) == 0 {
		q.where = append(q.where, condition)
		return q
	}
	var b bytes.Buffer
	next := 0
	for _, r := range condition {
		if r == '?' && next < len(args) {
			b.WriteString(Literal(args[next]))
			next++
			continue
		}
		b.WriteRune(r)
	}
	q.where = append(q.where, b.String())
	return q
}

func (q *SelectQuery) OrderBy(field string, desc bool) *SelectQuery {
	if desc {
		field += " DESC"
	}
	q.order = append(q.order, field)
	return q
}

func (q *SelectQuery) Skip(n int) *SelectQuery {
	q.skip = n
	return q
}

func (q *SelectQuery) Limit(n int) *SelectQuery {
	q.limit = n
	return q
}

func (q *SelectQuery) String() string {
	var b bytes.Buffer
	b.WriteString("SELECT ")
	if len(q.fields) > 0 {
		b.WriteString(strings.Join(q.fields, ", "))
		b.WriteRune(' ')
	}
	b.WriteString("FROM ")
	b.WriteString(q.from)
	if len(q.where) == 1 {
		b.WriteString(" WHERE ")
		b.WriteString(q.where[0])
	} else if len(q.where) > 1 {
		b.WriteString(" WHERE (")
		b.WriteString(strings.Join(q.where, ") AND ("))
		b.WriteRune(')')
	}
	if len(q.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.order, ", "))
	}
	if q.skip > 0 {
		b.WriteString(" SKIP ")
		b.WriteString(strconv.Itoa(q.skip))
	}
	if q.limit >= 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.limit))
	}
	return b.String()
}

var stringEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Literal renders a value as an OrientDB SQL literal. Strings shaped like a
// record identifier are rendered unquoted so they compare against links.
func Literal(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case RID:
		return string(v)
	case string:
		if RID(v).Valid() {
			return v
		}
		return "'" + stringEscaper.Replace(v) + "'"
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	case []RID:
		return "[" + strings.Join(RIDStrings(v), ", ") + "]"
	case []string:
		items := make([]string, len(v))
		for i := range v {
			items[i] = Literal(v[i])
		}
		return "[" + strings.Join(items, ", ") + "]"
	case []interface{}:
		items := make([]string, len(v))
		for i := range v {
			items[i] = Literal(v[i])
		}
		return "[" + strings.Join(items, ", ") + "]"
	default:
		return "'" + stringEscaper.Replace(fmt.Sprint(v)) + "'"
	}
}
