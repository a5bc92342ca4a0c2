package rest

import (
	"sort"
	"strings"

	"github.com/edgeflare/pgbase/pkg/pgq/schema"
)

// BuildInsert compiles a bulk INSERT from the decoded request body. Rows may
// declare different keys; missing columns fall back to their database
// defaults. Prefer: resolution=* turns the insert into an upsert.
func BuildInsert(snap schema.Snapshot, q *Query, rows []map[string]any) (Statement, error) {
	table, ok := snap.Lookup(q.Schema, q.Table)
	if !ok {
		return Statement{}, errTableNotFound(q.Schema, q.Table)
	}
	if len(rows) == 0 {
		return Statement{}, errInvalidQuerySyntax("insert payload has no rows")
	}
	cols, err := unionColumns(table, rows)
	if err != nil {
		return Statement{}, err
	}
	if len(cols) == 0 {
		return Statement{}, errInvalidQuerySyntax("insert payload has no columns")
	}

	b := &sqlBuilder{}
	b.write("INSERT INTO " + qualify(q.Schema, q.Table) + " (")
	for i, col := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(quoteIdent(col))
	}
	b.write(") VALUES ")
	for i, row := range rows {
		if i > 0 {
			b.write(", ")
		}
		b.write("(")
		for j, col := range cols {
			if j > 0 {
				b.write(", ")
			}
			v, present := row[col]
			if !present {
				b.write("DEFAULT")
				continue
			}
			nv, err := normalizeValue(v)
			if err != nil {
				return Statement{}, errInvalidQuerySyntax("column %q: %v", col, err)
			}
			b.write(b.param(nv))
		}
		b.write(")")
	}

	if q.Prefer.IsUpsert() {
		if err := b.writeOnConflict(table, q, cols); err != nil {
			return Statement{}, err
		}
	}
	if q.Prefer.WantsRepresentation() {
		b.writeReturning(tableScope{table: table}, q.Select)
	}
	return b.statement(), nil
}

// BuildUpdate compiles a partial UPDATE from a single-object payload. A
// filterless update is rejected before it can touch every row.
func BuildUpdate(snap schema.Snapshot, q *Query, payload map[string]any) (Statement, error) {
	table, ok := snap.Lookup(q.Schema, q.Table)
	if !ok {
		return Statement{}, errTableNotFound(q.Schema, q.Table)
	}
	if len(q.Filters) == 0 {
		return Statement{}, errUnscopedMutation(OpUpdate)
	}
	if len(payload) == 0 {
		return Statement{}, errInvalidQuerySyntax("update payload has no values")
	}
	cols := make([]string, 0, len(payload))
	for col := range payload {
		if !table.HasColumn(col) {
			return Statement{}, errColumnNotFound(table.Name, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	b := &sqlBuilder{}
	scope := tableScope{table: table}
	b.write("UPDATE " + qualify(q.Schema, q.Table) + " SET ")
	for i, col := range cols {
		if i > 0 {
			b.write(", ")
		}
		nv, err := normalizeValue(payload[col])
		if err != nil {
			return Statement{}, errInvalidQuerySyntax("column %q: %v", col, err)
		}
		b.write(quoteIdent(col) + " = " + b.param(nv))
	}
	b.write(" WHERE ")
	if err := b.writeFilters(scope, q.Filters); err != nil {
		return Statement{}, err
	}
	if q.Prefer.WantsRepresentation() {
		b.writeReturning(scope, q.Select)
	}
	return b.statement(), nil
}

// BuildDelete compiles a DELETE, with the same unscoped-mutation guard as
// updates.
func BuildDelete(snap schema.Snapshot, q *Query) (Statement, error) {
	table, ok := snap.Lookup(q.Schema, q.Table)
	if !ok {
		return Statement{}, errTableNotFound(q.Schema, q.Table)
	}
	if len(q.Filters) == 0 {
		return Statement{}, errUnscopedMutation(OpDelete)
	}
	b := &sqlBuilder{}
	scope := tableScope{table: table}
	b.write("DELETE FROM " + qualify(q.Schema, q.Table) + " WHERE ")
	if err := b.writeFilters(scope, q.Filters); err != nil {
		return Statement{}, err
	}
	if q.Prefer.WantsRepresentation() {
		b.writeReturning(scope, q.Select)
	}
	return b.statement(), nil
}

// unionColumns collects the sorted union of keys across all payload rows and
// validates each against the relation.
func unionColumns(table schema.Table, rows []map[string]any) ([]string, error) {
	seen := map[string]struct{}{}
	var cols []string
	for _, row := range rows {
		for col := range row {
			if _, dup := seen[col]; dup {
				continue
			}
			if !table.HasColumn(col) {
				return nil, errColumnNotFound(table.Name, col)
			}
			seen[col] = struct{}{}
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return cols, nil
}

// writeOnConflict renders the upsert clause. The conflict target comes from
// on_conflict, falling back to the primary key.
func (b *sqlBuilder) writeOnConflict(table schema.Table, q *Query, insertCols []string) error {
	target := q.OnConflict
	if len(target) == 0 {
		target = table.PrimaryKeys
	}
	if len(target) == 0 {
		return errMissingRequiredParameter("upsert on %q needs on_conflict or a primary key", table.Name)
	}
	quoted := make([]string, len(target))
	isTarget := map[string]bool{}
	for i, col := range target {
		if !table.HasColumn(col) {
			return errColumnNotFound(table.Name, col)
		}
		quoted[i] = quoteIdent(col)
		isTarget[col] = true
	}
	b.write(" ON CONFLICT (" + strings.Join(quoted, ", ") + ")")

	if q.Prefer.Resolution == "ignore-duplicates" {
		b.write(" DO NOTHING")
		return nil
	}
	var sets []string
	for _, col := range insertCols {
		if isTarget[col] {
			continue
		}
		sets = append(sets, quoteIdent(col)+" = EXCLUDED."+quoteIdent(col))
	}
	if len(sets) == 0 {
		// every inserted column is part of the conflict target
		b.write(" DO NOTHING")
		return nil
	}
	b.write(" DO UPDATE SET " + strings.Join(sets, ", "))
	return nil
}

// writeReturning renders RETURNING with the requested projection. Embeds
// cannot appear in RETURNING, so any embed widens it to *.
func (b *sqlBuilder) writeReturning(scope tableScope, nodes []SelectNode) {
	b.write(" RETURNING ")
	var cols []string
	for _, node := range nodes {
		if node.Embed != nil || node.Column == "*" {
			b.write("*")
			return
		}
		col, err := scope.col(node.Column)
		if err != nil {
			b.write("*")
			return
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		b.write("*")
		return
	}
	b.write(strings.Join(cols, ", "))
}
