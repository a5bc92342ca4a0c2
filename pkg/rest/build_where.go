package rest

import (
	"fmt"
	"strconv"
	"strings"
)

// sqlBuilder accumulates statement text and the positional parameters it
// references. All user-supplied values go through param; text only ever
// receives validated identifiers and fixed keywords.
type sqlBuilder struct {
	sb   strings.Builder
	args []any
	subs int // embed subquery alias counter
}

func (b *sqlBuilder) write(s string) {
	b.sb.WriteString(s)
}

func (b *sqlBuilder) writef(format string, a ...any) {
	fmt.Fprintf(&b.sb, format, a...)
}

// param registers v as the next bind parameter and returns its placeholder.
func (b *sqlBuilder) param(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) statement() Statement {
	return Statement{SQL: b.sb.String(), Args: b.args}
}

var leafOperators = map[string]string{
	"eq":  "=",
	"neq": "<>",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
	"cs":  "@>",
	"cd":  "<@",
}

// writeFilters renders filters joined by AND. It writes nothing when the
// list is empty; callers own the WHERE keyword.
func (b *sqlBuilder) writeFilters(scope tableScope, filters []FilterNode) error {
	for i, f := range filters {
		if i > 0 {
			b.write(" AND ")
		}
		if err := b.writeFilter(scope, f); err != nil {
			return err
		}
	}
	return nil
}

func (b *sqlBuilder) writeFilter(scope tableScope, f FilterNode) error {
	if !f.IsLeaf() {
		return b.writeCombinator(scope, f)
	}
	col, err := scope.col(f.Column)
	if err != nil {
		return err
	}

	switch f.Operator {
	case "is":
		pred := "IS"
		if f.Negate {
			pred = "IS NOT"
		}
		switch v := f.Value.(type) {
		case nil:
			b.writef("%s %s NULL", col, pred)
		case bool:
			if v {
				b.writef("%s %s TRUE", col, pred)
			} else {
				b.writef("%s %s FALSE", col, pred)
			}
		default:
			return errInvalidFilter("operator is on column %q accepts null, true or false", f.Column)
		}
		return nil

	case "in":
		items, ok := f.Value.([]string)
		if !ok {
			return errInvalidFilter("operator in on column %q needs a list", f.Column)
		}
		if len(items) == 0 {
			// in.() matches nothing; negated it matches everything
			if f.Negate {
				b.write("TRUE")
			} else {
				b.write("FALSE")
			}
			return nil
		}
		placeholders := make([]string, len(items))
		for i, item := range items {
			placeholders[i] = b.param(item)
		}
		pred := "IN"
		if f.Negate {
			pred = "NOT IN"
		}
		b.writef("%s %s (%s)", col, pred, strings.Join(placeholders, ", "))
		return nil

	case "like", "ilike":
		op := "LIKE"
		if f.Operator == "ilike" {
			op = "ILIKE"
		}
		pattern, ok := f.Value.(string)
		if !ok {
			return errInvalidFilter("operator %s on column %q needs a pattern", f.Operator, f.Column)
		}
		expr := fmt.Sprintf("%s %s %s", col, op, b.param(likePattern(pattern)))
		if f.Negate {
			expr = "NOT (" + expr + ")"
		}
		b.write(expr)
		return nil

	case "fts":
		expr := fmt.Sprintf("%s @@ plainto_tsquery(%s)", col, b.param(f.Value))
		if f.Negate {
			expr = "NOT (" + expr + ")"
		}
		b.write(expr)
		return nil
	}

	sqlOp, known := leafOperators[f.Operator]
	if !known {
		return errInvalidFilter("unknown operator %q on column %q", f.Operator, f.Column)
	}
	expr := fmt.Sprintf("%s %s %s", col, sqlOp, b.param(f.Value))
	if f.Negate {
		expr = "NOT (" + expr + ")"
	}
	b.write(expr)
	return nil
}

func (b *sqlBuilder) writeCombinator(scope tableScope, f FilterNode) error {
	if len(f.Children) == 0 {
		return errInvalidFilter("empty %s group", f.Combinator)
	}
	joiner := " AND "
	if f.Combinator == "or" {
		joiner = " OR "
	}
	if f.Negate {
		b.write("NOT ")
	}
	b.write("(")
	for i, child := range f.Children {
		if i > 0 {
			b.write(joiner)
		}
		if err := b.writeFilter(scope, child); err != nil {
			return err
		}
	}
	b.write(")")
	return nil
}

// writeOrderBy renders an ORDER BY clause, or nothing for an empty order
// list. Columns are validated through the scope like filter columns.
func (b *sqlBuilder) writeOrderBy(scope tableScope, order []OrderSpec) error {
	for i, spec := range order {
		if i == 0 {
			b.write(" ORDER BY ")
		} else {
			b.write(", ")
		}
		col, err := scope.col(spec.Column)
		if err != nil {
			return errInvalidOrderBy("unknown column %q in order", spec.Column)
		}
		b.write(col)
		if spec.Desc {
			b.write(" DESC")
		}
		switch spec.Nulls {
		case "first":
			b.write(" NULLS FIRST")
		case "last":
			b.write(" NULLS LAST")
		default:
			// nulls sort last unless asked otherwise; ascending order gets
			// that from the engine already, descending needs it spelled out
			if spec.Desc {
				b.write(" NULLS LAST")
			}
		}
	}
	return nil
}

// writeLimitOffset inlines validated non-negative integers. They never come
// from raw request text, the parser rejects anything but digits.
func (b *sqlBuilder) writeLimitOffset(limit, offset *int) {
	if limit != nil {
		b.writef(" LIMIT %d", *limit)
	}
	if offset != nil {
		b.writef(" OFFSET %d", *offset)
	}
}
