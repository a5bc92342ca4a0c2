package schema

import (
	"context"
	"fmt"
	"maps"

	"github.com/edgeflare/pgbase/pkg/pgq"
)

func loadAll(ctx context.Context, conn pgq.Conn) (Snapshot, map[string]Function, error) {
	schemas, err := querySchemas(ctx, conn)
	if err != nil {
		return nil, nil, fmt.Errorf("query schemas: %w", err)
	}

	tables := make(Snapshot)
	functions := make(map[string]Function)
	for _, schemaName := range schemas {
		if isHidden(schemaName) {
			continue
		}

		schemaTables, err := loadSchema(ctx, conn, schemaName)
		if err != nil {
			return nil, nil, fmt.Errorf("load schema %s: %w", schemaName, err)
		}
		maps.Copy(tables, schemaTables)

		fns, err := queryFunctions(ctx, conn, schemaName)
		if err != nil {
			return nil, nil, fmt.Errorf("query functions %s: %w", schemaName, err)
		}
		for _, fn := range fns {
			functions[fn.Schema+"."+fn.Name] = fn
		}
	}
	return tables, functions, nil
}

func loadSchema(ctx context.Context, conn pgq.Conn, schemaName string) (Snapshot, error) {
	tableRows, err := conn.Query(ctx, `
    SELECT table_schema, table_name, 'TABLE'::text as table_type
        FROM information_schema.tables
        WHERE table_schema = $1 AND table_type = 'BASE TABLE'
        UNION ALL
        SELECT table_schema, table_name, 'VIEW'::text as table_type
        FROM information_schema.views
        WHERE table_schema = $1
        UNION ALL
        SELECT schemaname, matviewname, 'MATERIALIZED VIEW'::text as table_type
        FROM pg_matviews
        WHERE schemaname = $1
        ORDER BY table_schema, table_name`, schemaName)
	if err != nil {
		return nil, err
	}
	defer tableRows.Close()

	tables := make(Snapshot)
	for tableRows.Next() {
		var t Table
		var tableTypeStr string
		if err := tableRows.Scan(&t.Schema, &t.Name, &tableTypeStr); err != nil {
			return nil, err
		}
		t.Type = TableType(tableTypeStr)
		tables[t.fullName()] = t
	}
	if err := tableRows.Err(); err != nil {
		return nil, err
	}

	for key, t := range tables {
		cols, pkeys, err := queryColumns(ctx, conn, t.Schema, t.Name)
		if err != nil {
			return nil, fmt.Errorf("query columns %s: %w", key, err)
		}
		t.Columns = cols
		t.PrimaryKeys = pkeys

		if t.Type == TypeTable {
			fkeys, err := queryForeignKeys(ctx, conn, t.Schema, t.Name)
			if err != nil {
				return nil, fmt.Errorf("query foreign keys %s: %w", key, err)
			}
			t.ForeignKeys = fkeys
		}
		tables[key] = t
	}
	return tables, nil
}

func queryColumns(ctx context.Context, conn pgq.Conn, schemaName, table string) ([]Column, []string, error) {
	rows, err := conn.Query(ctx, `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = $1
					AND tc.table_name = $2
					AND kcu.column_name = c.column_name
			) AS is_primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, schemaName, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []Column
	var pkeys []string
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.IsPrimaryKey); err != nil {
			return nil, nil, err
		}
		cols = append(cols, col)
		if col.IsPrimaryKey {
			pkeys = append(pkeys, col.Name)
		}
	}
	return cols, pkeys, rows.Err()
}

func queryForeignKeys(ctx context.Context, conn pgq.Conn, schemaName, table string) ([]ForeignKey, error) {
	rows, err := conn.Query(ctx, `
		SELECT
			kcu.column_name,
			ccu.table_schema,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2`, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fkeys []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedSchema, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, err
		}
		fkeys = append(fkeys, fk)
	}
	return fkeys, rows.Err()
}

func queryFunctions(ctx context.Context, conn pgq.Conn, schemaName string) ([]Function, error) {
	rows, err := conn.Query(ctx, `
		SELECT n.nspname, p.proname, COALESCE(p.proargnames, '{}')
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = $1 AND p.prokind = 'f'`, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fns []Function
	for rows.Next() {
		var fn Function
		if err := rows.Scan(&fn.Schema, &fn.Name, &fn.ArgNames); err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}

func querySchemas(ctx context.Context, conn pgq.Conn) ([]string, error) {
	rows, err := conn.Query(ctx, `SELECT schema_name FROM information_schema.schemata ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		schemas = append(schemas, name)
	}
	return schemas, rows.Err()
}

// isHidden reports whether a schema is kept out of the snapshot. Besides the
// Postgres system schemas this covers "auth": its credential and session
// tables must never be reachable through the generic table routes.
func isHidden(schemaName string) bool {
	switch schemaName {
	case "information_schema", "pg_catalog", "pg_toast", "auth":
		return true
	default:
		return false
	}
}
