package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Select is a single-table read with an optional inner join.
type Select struct {
	From    string
	Columns []string // nil selects every column
	Join    *Join
	Where   Predicate
	// OrderBy is required. Each column sorts ascending by byte value, so
	// the order does not depend on the connection's collation.
	OrderBy []string
	Limit   int // zero means no limit
}

// Join is an inner join on column equality.
type Join struct {
	Table string
	On    []On
}

// On equates a column of the left table with a column of the joined table.
type On struct {
	Left  string
	Right string
}

// Predicate is a sealed filter node. Only Eq and And implement it.
type Predicate interface {
	predicateNode()
}

// Eq matches rows where Field equals Value.
type Eq struct {
	Field string
	Value any
}

func (Eq) predicateNode() {}

// And matches rows satisfying every predicate. Empty And is always true.
type And []Predicate

func (And) predicateNode() {}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

func checkIdent(kind, name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid %s identifier %q", kind, name)
	}
	return nil
}

// Compile returns the SQL text and its positional parameters.
//
// Identifiers may be qualified as table.column. Join conditions name bare
// columns and are qualified with From on the left and the joined table on
// the right. Compile fails on a missing ORDER BY, an empty join condition
// or an identifier outside the allowed pattern.
func Compile(s Select) (string, []any, error) {
	if err := checkIdent("table", s.From); err != nil {
		return "", nil, err
	}
	if len(s.OrderBy) == 0 {
		return "", nil, fmt.Errorf("query on %s has no ORDER BY", s.From)
	}

	cols := "*"
	if len(s.Columns) > 0 {
		for _, c := range s.Columns {
			if err := checkIdent("column", c); err != nil {
				return "", nil, err
			}
		}
		cols = strings.Join(s.Columns, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, s.From)

	if s.Join != nil {
		if err := checkIdent("table", s.Join.Table); err != nil {
			return "", nil, err
		}
		if len(s.Join.On) == 0 {
			return "", nil, fmt.Errorf("join on %s has no condition", s.Join.Table)
		}
		conds := make([]string, 0, len(s.Join.On))
		for _, on := range s.Join.On {
			if err := checkIdent("column", on.Left); err != nil {
				return "", nil, err
			}
			if err := checkIdent("column", on.Right); err != nil {
				return "", nil, err
			}
			conds = append(conds, fmt.Sprintf("%s.%s = %s.%s", s.From, on.Left, s.Join.Table, on.Right))
		}
		fmt.Fprintf(&b, " INNER JOIN %s ON %s", s.Join.Table, strings.Join(conds, " AND "))
	}

	var params []any
	if s.Where != nil {
		where, p, err := compilePredicate(s.Where)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		if where != "" {
			b.WriteString(" WHERE " + where)
			params = p
		}
	}

	order := make([]string, 0, len(s.OrderBy))
	for _, o := range s.OrderBy {
		if err := checkIdent("order", o); err != nil {
			return "", nil, err
		}
		order = append(order, o+" COLLATE BINARY ASC")
	}
	b.WriteString(" ORDER BY " + strings.Join(order, ", "))

	if s.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.Limit)
	}
	return b.String(), params, nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Eq:
		if err := checkIdent("column", pred.Field); err != nil {
			return "", nil, err
		}
		if pred.Value == nil {
			return "", nil, fmt.Errorf("nil value for %s", pred.Field)
		}
		return pred.Field + " = ?", []any{pred.Value}, nil
	case And:
		var parts []string
		var params []any
		for _, sub := range pred {
			sql, p, err := compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			if sql == "" {
				continue
			}
			parts = append(parts, sql)
			params = append(params, p...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// Where builds an And of equality predicates from alternating field/value
// pairs, skipping pairs whose value is the empty string.
func Where(pairs ...any) And {
	var and And
	for i := 0; i+1 < len(pairs); i += 2 {
		field, _ := pairs[i].(string)
		if s, ok := pairs[i+1].(string); ok && s == "" {
			continue
		}
		and = append(and, Eq{Field: field, Value: pairs[i+1]})
	}
	return and
}
