// Package schema maintains an in-memory snapshot of the database's tables,
// views, columns, keys, relationships and callable functions. The REST layer
// consults it to resolve embedded-resource relationships, fall back to primary
// keys for upsert conflict targets, and reject requests against unknown tables
// before any SQL is built.
//
// Reloads follow PostgREST's convention: NOTIFY on the reload channel with the
// payload "reload schema".
package schema

import "fmt"

type TableType string

const (
	TypeTable            TableType = "TABLE"
	TypeView             TableType = "VIEW"
	TypeMaterializedView TableType = "MATERIALIZED VIEW"
)

type Table struct {
	Schema      string       `json:"schema"`
	Name        string       `json:"name"`
	Type        TableType    `json:"type"`
	Columns     []Column     `json:"columns"`
	PrimaryKeys []string     `json:"primary_keys"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

type Column struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedSchema string `json:"referenced_schema"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Function describes a callable database function exposed under /rpc.
// ArgNames preserves declaration order so positional calls line up.
type Function struct {
	Schema   string   `json:"schema"`
	Name     string   `json:"name"`
	ArgNames []string `json:"arg_names"`
}

// Snapshot is a point-in-time copy of the cached tables keyed by
// "schema.table".
type Snapshot map[string]Table

// Lookup returns the table for the given schema and name.
func (s Snapshot) Lookup(schemaName, tableName string) (Table, bool) {
	t, ok := s[schemaName+"."+tableName]
	return t, ok
}

// HasColumn reports whether the table declares the named column.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (t Table) fullName() string {
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}
