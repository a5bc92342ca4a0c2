package rest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/edgeflare/pgbase/pkg/pgq/schema"
)

// plainIdent matches identifiers that need no quoting. Anything else goes
// through pgx's sanitizer.
var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func quoteIdent(name string) string {
	if plainIdent.MatchString(name) {
		return name
	}
	return pgx.Identifier{name}.Sanitize()
}

func qualify(schemaName, table string) string {
	return quoteIdent(schemaName) + "." + quoteIdent(table)
}

// tableScope resolves column references against one relation, optionally
// through an alias when the relation appears in a correlated subquery.
type tableScope struct {
	table schema.Table
	alias string
}

func (s tableScope) ref() string {
	if s.alias != "" {
		return s.alias
	}
	return qualify(s.table.Schema, s.table.Name)
}

// col validates the column against the cached relation and returns a
// qualified reference. Unknown columns never reach SQL text.
func (s tableScope) col(name string) (string, error) {
	if !s.table.HasColumn(name) {
		return "", errColumnNotFound(s.table.Name, name)
	}
	if s.alias != "" {
		return s.alias + "." + quoteIdent(name), nil
	}
	return quoteIdent(name), nil
}

// likePattern translates the URL wildcard * into SQL's %.
func likePattern(s string) string {
	return strings.ReplaceAll(s, "*", "%")
}

// normalizeValue prepares a decoded JSON payload value for use as a bind
// parameter. Nested objects and arrays are re-encoded so they land in json
// and array columns as text for the server to coerce.
func normalizeValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode payload value: %w", err)
		}
		return string(b), nil
	default:
		return v, nil
	}
}
