package rest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Function results are materialized before filters apply, so filter, order
// and pagination parameters on /rpc calls run over the returned rows in
// memory rather than being compiled into the statement.

func applyFilters(rows []map[string]any, filters []FilterNode) ([]map[string]any, error) {
	if len(filters) == 0 {
		return rows, nil
	}
	out := rows[:0:0]
	for _, row := range rows {
		keep := true
		for _, f := range filters {
			match, err := matchFilter(row, f)
			if err != nil {
				return nil, err
			}
			if !match {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func matchFilter(row map[string]any, f FilterNode) (bool, error) {
	if !f.IsLeaf() {
		return matchCombinator(row, f)
	}
	v, ok := row[f.Column]
	if !ok {
		return false, errColumnNotFound("function result", f.Column)
	}

	var match bool
	switch f.Operator {
	case "is":
		switch want := f.Value.(type) {
		case nil:
			match = v == nil
		case bool:
			got, isBool := v.(bool)
			match = isBool && got == want
		}
	case "in":
		items, _ := f.Value.([]string)
		for _, item := range items {
			if cmp, comparable := compareLoose(v, item); comparable && cmp == 0 {
				match = true
				break
			}
		}
	case "like", "ilike":
		pattern, _ := f.Value.(string)
		s, isString := v.(string)
		if isString {
			match = matchLike(s, likePattern(pattern), f.Operator == "ilike")
		}
	case "eq", "neq", "gt", "gte", "lt", "lte":
		raw := fmt.Sprint(f.Value)
		cmp, comparable := compareLoose(v, raw)
		if !comparable {
			match = false
			break
		}
		switch f.Operator {
		case "eq":
			match = cmp == 0
		case "neq":
			match = cmp != 0
		case "gt":
			match = cmp > 0
		case "gte":
			match = cmp >= 0
		case "lt":
			match = cmp < 0
		case "lte":
			match = cmp <= 0
		}
	default:
		return false, errInvalidFilter("operator %q is not supported on function results", f.Operator)
	}
	if f.Negate {
		match = !match
	}
	return match, nil
}

func matchCombinator(row map[string]any, f FilterNode) (bool, error) {
	match := f.Combinator != "or"
	for _, child := range f.Children {
		got, err := matchFilter(row, child)
		if err != nil {
			return false, err
		}
		if f.Combinator == "or" {
			match = match || got
		} else {
			match = match && got
		}
	}
	if f.Negate {
		match = !match
	}
	return match, nil
}

// compareLoose compares a row value against request text, coercing numbers
// and booleans before falling back to string comparison. The second return
// is false when the pair cannot be compared, e.g. the value is NULL.
func compareLoose(v any, raw string) (int, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		switch {
		case val < n:
			return -1, true
		case val > n:
			return 1, true
		}
		return 0, true
	case int64:
		return compareLoose(float64(val), raw)
	case int:
		return compareLoose(float64(val), raw)
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return 0, false
		}
		if val == b {
			return 0, true
		}
		return 1, true
	case string:
		return strings.Compare(val, raw), true
	default:
		return strings.Compare(fmt.Sprint(val), raw), true
	}
}

func matchLike(s, pattern string, caseInsensitive bool) bool {
	expr := "^" + strings.NewReplacer(`%`, `.*`, `_`, `.`).Replace(regexp.QuoteMeta(pattern)) + "$"
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func applyOrder(rows []map[string]any, specs []OrderSpec) {
	if len(specs) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, spec := range specs {
			a, b := rows[i][spec.Column], rows[j][spec.Column]
			if a == nil || b == nil {
				if a == nil && b == nil {
					continue
				}
				first := spec.Nulls == "first"
				if a == nil {
					return first
				}
				return !first
			}
			cmp, ok := compareLoose(a, fmt.Sprint(b))
			if !ok || cmp == 0 {
				continue
			}
			if spec.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func applyPagination(rows []map[string]any, limit, offset *int) []map[string]any {
	if offset != nil {
		if *offset >= len(rows) {
			return rows[:0]
		}
		rows = rows[*offset:]
	}
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}
