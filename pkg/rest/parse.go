package rest

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// maxNestingDepth caps select-embed and combinator recursion so a hostile
// query string cannot blow the stack.
const maxNestingDepth = 8

// reservedParams never parse as filters.
var reservedParams = map[string]struct{}{
	"select":      {},
	"order":       {},
	"limit":       {},
	"offset":      {},
	"count":       {},
	"on_conflict": {},
}

var filterOperators = map[string]struct{}{
	"eq":    {},
	"neq":   {},
	"gt":    {},
	"gte":   {},
	"lt":    {},
	"lte":   {},
	"like":  {},
	"ilike": {},
	"in":    {},
	"is":    {},
	"cs":    {},
	"cd":    {},
	"fts":   {},
}

// ParseRequest turns an incoming request for schema.table into a Query
// descriptor. It reads only the URL and headers; bodies are handled by the
// mutation builders.
func ParseRequest(r *http.Request, schemaName, table string) (*Query, error) {
	q := &Query{
		Schema:       schemaName,
		Table:        table,
		Prefer:       parsePrefer(r),
		SingleObject: wantsSingular(r),
		CSV:          wantsCSV(r),
	}
	if err := parseQueryValues(q, r.URL.Query()); err != nil {
		return nil, err
	}
	return q, nil
}

func parseQueryValues(q *Query, values url.Values) error {
	sel, err := parseSelectList(values.Get("select"), 0)
	if err != nil {
		return err
	}
	if len(sel) == 0 {
		sel = []SelectNode{{Column: "*"}}
	}
	q.Select = sel

	if raw := values.Get("order"); raw != "" {
		q.Order, err = parseOrderParam(raw)
		if err != nil {
			return err
		}
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := parseNonNegativeInt("limit", raw)
		if err != nil {
			return err
		}
		q.Limit = &n
	}
	if raw := values.Get("offset"); raw != "" {
		n, err := parseNonNegativeInt("offset", raw)
		if err != nil {
			return err
		}
		q.Offset = &n
	}
	if raw := values.Get("on_conflict"); raw != "" {
		for col := range strings.SplitSeq(raw, ",") {
			col = strings.TrimSpace(col)
			if col == "" {
				return errInvalidQuerySyntax("on_conflict has an empty column name")
			}
			q.OnConflict = append(q.OnConflict, col)
		}
	}

	// url.Values is a map; sort keys so repeated parses of the same query
	// string produce the same filter order.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, reserved := reservedParams[key]; reserved {
			continue
		}
		for _, value := range values[key] {
			if err := parseFilterParam(q, key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseFilterParam(q *Query, key, value string) error {
	negate := false
	kind := key
	if after, ok := strings.CutPrefix(kind, "not."); ok && (after == "and" || after == "or") {
		negate = true
		kind = after
	}
	if kind == "and" || kind == "or" {
		node, err := parseCombinator(kind, negate, value, 1)
		if err != nil {
			return err
		}
		q.Filters = append(q.Filters, node)
		return nil
	}

	// rel.col=op.v scopes the filter to an embedded resource; rel.order=...
	// scopes ordering. A dotted key whose head matches no embedded resource
	// is a syntax error, not a filter on a dotted column.
	if rel, rest, ok := strings.Cut(key, "."); ok {
		if embed := findEmbed(q.Select, rel); embed != nil {
			return parseEmbedParam(embed, rest, value)
		}
		return errInvalidQuerySyntax("no embedded resource %q for parameter %q", rel, key)
	}
	leaf, err := parseLeafValue(key, value)
	if err != nil {
		return err
	}
	q.Filters = append(q.Filters, leaf)
	return nil
}

func parseEmbedParam(embed *EmbedNode, rest, value string) error {
	if sub, tail, ok := strings.Cut(rest, "."); ok {
		if nested := findEmbed(embed.Select, sub); nested != nil {
			return parseEmbedParam(nested, tail, value)
		}
	}
	if rest == "order" {
		order, err := parseOrderParam(value)
		if err != nil {
			return err
		}
		embed.Order = append(embed.Order, order...)
		return nil
	}
	leaf, err := parseLeafValue(rest, value)
	if err != nil {
		return err
	}
	embed.Filters = append(embed.Filters, leaf)
	return nil
}

func findEmbed(nodes []SelectNode, table string) *EmbedNode {
	for i := range nodes {
		if nodes[i].Embed != nil && nodes[i].Embed.Table == table {
			return nodes[i].Embed
		}
	}
	return nil
}

// parseLeafValue parses the value side of col=value. A value whose head
// segment is a known operator (or "not" followed by one) is operator form;
// anything else is shorthand for equality against the literal value. Inside
// and/or lists the operator is mandatory, see parseCombinatorItem.
func parseLeafValue(column, raw string) (FilterNode, error) {
	if column == "" {
		return FilterNode{}, errInvalidFilter("filter has an empty column name")
	}
	negate := false
	val := raw
	if after, ok := strings.CutPrefix(val, "not."); ok {
		negate = true
		val = after
	}
	if op, rest, ok := strings.Cut(val, "."); ok {
		if _, known := filterOperators[op]; known {
			return buildLeaf(column, op, rest, negate)
		}
	} else if _, known := filterOperators[val]; known && val == "is" {
		return FilterNode{}, errInvalidFilter("operator is on column %q needs a value", column)
	}
	if negate {
		op, _, _ := strings.Cut(val, ".")
		return FilterNode{}, errInvalidFilter("unknown operator %q on column %q", op, column)
	}
	// plain-equality shorthand: col=value
	return FilterNode{Column: column, Operator: "eq", Value: raw}, nil
}

func buildLeaf(column, op, rest string, negate bool) (FilterNode, error) {
	node := FilterNode{Column: column, Operator: op, Negate: negate}
	switch op {
	case "in":
		items, err := parseInList(column, rest)
		if err != nil {
			return FilterNode{}, err
		}
		node.Value = items
	case "is":
		switch rest {
		case "null":
			node.Value = nil
		case "true":
			node.Value = true
		case "false":
			node.Value = false
		default:
			return FilterNode{}, errInvalidFilter("operator is on column %q accepts null, true or false, got %q", column, rest)
		}
	default:
		node.Value = rest
	}
	return node, nil
}

func parseInList(column, raw string) ([]string, error) {
	if !strings.HasPrefix(raw, "(") || !strings.HasSuffix(raw, ")") {
		return nil, errInvalidFilter("operator in on column %q needs a parenthesized list", column)
	}
	inner := strings.TrimSpace(raw[1 : len(raw)-1])
	if inner == "" {
		// in.() matches nothing; the builder compiles it to FALSE.
		return []string{}, nil
	}
	parts, err := splitTopLevel(inner)
	if err != nil {
		return nil, errInvalidFilter("operator in on column %q has an unbalanced list", column)
	}
	items := make([]string, 0, len(parts))
	for _, item := range parts {
		item = strings.TrimSpace(item)
		if len(item) >= 2 && item[0] == '"' && item[len(item)-1] == '"' {
			item = item[1 : len(item)-1]
		}
		items = append(items, item)
	}
	return items, nil
}

// parseCombinator parses and=(...) / or=(...) bodies, recursing into nested
// and(...)/or(...)/not.and(...)/not.or(...) groups.
func parseCombinator(kind string, negate bool, raw string, depth int) (FilterNode, error) {
	if depth > maxNestingDepth {
		return FilterNode{}, errInvalidQuerySyntax("filter nesting exceeds depth %d", maxNestingDepth)
	}
	if !strings.HasPrefix(raw, "(") || !strings.HasSuffix(raw, ")") {
		return FilterNode{}, errInvalidQuerySyntax("%s filter needs a parenthesized group, got %q", kind, raw)
	}
	inner := strings.TrimSpace(raw[1 : len(raw)-1])
	if inner == "" {
		return FilterNode{}, errInvalidQuerySyntax("%s filter group is empty", kind)
	}
	items, err := splitTopLevel(inner)
	if err != nil {
		return FilterNode{}, err
	}
	node := FilterNode{Combinator: kind, Negate: negate}
	for _, item := range items {
		child, err := parseCombinatorItem(item, depth)
		if err != nil {
			return FilterNode{}, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func parseCombinatorItem(item string, depth int) (FilterNode, error) {
	item = strings.TrimSpace(item)
	negate := false
	head := item
	if after, ok := strings.CutPrefix(head, "not."); ok && (strings.HasPrefix(after, "and(") || strings.HasPrefix(after, "or(")) {
		negate = true
		head = after
	}
	for _, kind := range []string{"and", "or"} {
		if rest, ok := strings.CutPrefix(head, kind+"("); ok {
			return parseCombinator(kind, negate, "("+rest, depth+1)
		}
	}

	// a leaf inside a group must spell its operator: col.op.value
	column, rest, ok := strings.Cut(item, ".")
	if !ok || column == "" {
		return FilterNode{}, errInvalidFilter("malformed filter %q in group", item)
	}
	if after, hasNot := strings.CutPrefix(rest, "not."); hasNot {
		negate = true
		rest = after
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok {
		// operators like is still need their dot-separated value
		op = rest
	}
	if _, known := filterOperators[op]; !known {
		return FilterNode{}, errInvalidFilter("unknown operator %q on column %q", op, column)
	}
	if !ok {
		return FilterNode{}, errInvalidFilter("operator %s on column %q needs a value", op, column)
	}
	return buildLeaf(column, op, value, negate)
}

// parseSelectList parses the select parameter: columns and rel(sub,select)
// embeds, comma separated at the top level.
func parseSelectList(raw string, depth int) ([]SelectNode, error) {
	if depth > maxNestingDepth {
		return nil, errInvalidQuerySyntax("select nesting exceeds depth %d", maxNestingDepth)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	tokens, err := splitTopLevel(raw)
	if err != nil {
		return nil, err
	}
	nodes := make([]SelectNode, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, errInvalidQuerySyntax("select has an empty item")
		}
		open := strings.IndexByte(token, '(')
		if open < 0 {
			nodes = append(nodes, SelectNode{Column: token})
			continue
		}
		if !strings.HasSuffix(token, ")") || open == 0 {
			return nil, errInvalidQuerySyntax("malformed embed %q in select", token)
		}
		inner, err := parseSelectList(token[open+1:len(token)-1], depth+1)
		if err != nil {
			return nil, err
		}
		if len(inner) == 0 {
			inner = []SelectNode{{Column: "*"}}
		}
		nodes = append(nodes, SelectNode{Embed: &EmbedNode{Table: token[:open], Select: inner}})
	}
	return nodes, nil
}

func parseOrderParam(raw string) ([]OrderSpec, error) {
	var specs []OrderSpec
	for item := range strings.SplitSeq(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, errInvalidOrderBy("order has an empty item")
		}
		spec := OrderSpec{Column: item}
		if col, ok := strings.CutSuffix(spec.Column, ".nullsfirst"); ok {
			spec.Nulls = "first"
			spec.Column = col
		} else if col, ok := strings.CutSuffix(spec.Column, ".nullslast"); ok {
			spec.Nulls = "last"
			spec.Column = col
		}
		if col, ok := strings.CutSuffix(spec.Column, ".desc"); ok {
			spec.Desc = true
			spec.Column = col
		} else if col, ok := strings.CutSuffix(spec.Column, ".asc"); ok {
			spec.Column = col
		}
		if spec.Column == "" || strings.Contains(spec.Column, ".") {
			return nil, errInvalidOrderBy("malformed order item %q", item)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseNonNegativeInt(param, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errInvalidLimit(param, raw)
	}
	return n, nil
}

// splitTopLevel splits on commas outside parentheses and double quotes.
func splitTopLevel(s string) ([]string, error) {
	var (
		parts    []string
		start    int
		depth    int
		inQuotes bool
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case '(':
			if !inQuotes {
				depth++
			}
		case ')':
			if !inQuotes {
				depth--
				if depth < 0 {
					return nil, errInvalidQuerySyntax("unbalanced parentheses in %q", s)
				}
			}
		case ',':
			if depth == 0 && !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 || inQuotes {
		return nil, errInvalidQuerySyntax("unbalanced parentheses in %q", s)
	}
	parts = append(parts, s[start:])
	return parts, nil
}
