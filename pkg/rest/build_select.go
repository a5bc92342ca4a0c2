package rest

import (
	"strconv"

	"github.com/edgeflare/pgbase/pkg/pgq/schema"
)

// BuildSelect compiles a read Query into one SELECT statement. Embedded
// resources become correlated subqueries so the database assembles the
// nested JSON in a single round trip.
func BuildSelect(snap schema.Snapshot, q *Query) (Statement, error) {
	table, ok := snap.Lookup(q.Schema, q.Table)
	if !ok {
		return Statement{}, errTableNotFound(q.Schema, q.Table)
	}
	b := &sqlBuilder{}
	scope := tableScope{table: table}

	b.write("SELECT ")
	if err := b.writeProjection(snap, scope, q.Select); err != nil {
		return Statement{}, err
	}
	b.write(" FROM " + qualify(q.Schema, q.Table))
	if len(q.Filters) > 0 {
		b.write(" WHERE ")
		if err := b.writeFilters(scope, q.Filters); err != nil {
			return Statement{}, err
		}
	}
	if err := b.writeOrderBy(scope, q.Order); err != nil {
		return Statement{}, err
	}
	b.writeLimitOffset(q.Limit, q.Offset)
	return b.statement(), nil
}

// BuildCount compiles the exact-count companion statement: same relation and
// filters, no projection, order or pagination.
func BuildCount(snap schema.Snapshot, q *Query) (Statement, error) {
	table, ok := snap.Lookup(q.Schema, q.Table)
	if !ok {
		return Statement{}, errTableNotFound(q.Schema, q.Table)
	}
	b := &sqlBuilder{}
	b.write("SELECT COUNT(*) AS count FROM " + qualify(q.Schema, q.Table))
	if len(q.Filters) > 0 {
		b.write(" WHERE ")
		if err := b.writeFilters(tableScope{table: table}, q.Filters); err != nil {
			return Statement{}, err
		}
	}
	return b.statement(), nil
}

// BuildPlannedCount reads the planner's row estimate for the relation. It
// ignores filters, which is the documented tradeoff of count=planned.
func BuildPlannedCount(q *Query) Statement {
	b := &sqlBuilder{}
	b.write("SELECT reltuples::bigint AS count FROM pg_class WHERE oid = ")
	b.write(b.param(qualify(q.Schema, q.Table)) + "::regclass")
	return b.statement()
}

func (b *sqlBuilder) writeProjection(snap schema.Snapshot, scope tableScope, nodes []SelectNode) error {
	for i, node := range nodes {
		if i > 0 {
			b.write(", ")
		}
		switch {
		case node.Embed != nil:
			if err := b.writeEmbed(snap, scope, node.Embed); err != nil {
				return err
			}
		case node.Column == "*":
			b.write("*")
		default:
			col, err := scope.col(node.Column)
			if err != nil {
				return err
			}
			b.write(col)
		}
	}
	return nil
}

// writeEmbed renders one embedded resource. A foreign key from the parent to
// the embed yields a to-one object; a foreign key from the embed back to the
// parent yields a to-many JSON array.
func (b *sqlBuilder) writeEmbed(snap schema.Snapshot, parent tableScope, embed *EmbedNode) error {
	child, ok := snap.Lookup(parent.table.Schema, embed.Table)
	if !ok {
		return errTableNotFound(parent.table.Schema, embed.Table)
	}

	if fk, found := foreignKeyTo(parent.table, child); found {
		return b.writeToOneEmbed(snap, parent, child, embed, fk)
	}
	if fk, found := foreignKeyTo(child, parent.table); found {
		return b.writeToManyEmbed(snap, parent, child, embed, fk)
	}
	return errInvalidQuerySyntax("no relationship between %q and %q", parent.table.Name, embed.Table)
}

// foreignKeyTo finds a foreign key on from that references to.
func foreignKeyTo(from, to schema.Table) (schema.ForeignKey, bool) {
	for _, fk := range from.ForeignKeys {
		if fk.ReferencedSchema == to.Schema && fk.ReferencedTable == to.Name {
			return fk, true
		}
	}
	return schema.ForeignKey{}, false
}

func (b *sqlBuilder) nextAliases() (rel, sub string) {
	b.subs++
	n := strconv.Itoa(b.subs)
	return "r_" + n, "sub_" + n
}

func (b *sqlBuilder) writeToOneEmbed(snap schema.Snapshot, parent tableScope, child schema.Table, embed *EmbedNode, fk schema.ForeignKey) error {
	relAlias, subAlias := b.nextAliases()
	childScope := tableScope{table: child, alias: relAlias}

	b.writef("(SELECT row_to_json(%s) FROM (SELECT ", subAlias)
	if err := b.writeProjection(snap, childScope, embed.Select); err != nil {
		return err
	}
	b.writef(" FROM %s %s WHERE %s.%s = %s.%s",
		qualify(child.Schema, child.Name), relAlias,
		relAlias, quoteIdent(fk.ReferencedColumn),
		parent.ref(), quoteIdent(fk.Column))
	if len(embed.Filters) > 0 {
		b.write(" AND ")
		if err := b.writeFilters(childScope, embed.Filters); err != nil {
			return err
		}
	}
	if err := b.writeOrderBy(childScope, embed.Order); err != nil {
		return err
	}
	b.writef(") %s) AS %s", subAlias, quoteIdent(embed.Table))
	return nil
}

func (b *sqlBuilder) writeToManyEmbed(snap schema.Snapshot, parent tableScope, child schema.Table, embed *EmbedNode, fk schema.ForeignKey) error {
	relAlias, subAlias := b.nextAliases()
	childScope := tableScope{table: child, alias: relAlias}

	b.writef("COALESCE((SELECT json_agg(row_to_json(%s)) FROM (SELECT ", subAlias)
	if err := b.writeProjection(snap, childScope, embed.Select); err != nil {
		return err
	}
	b.writef(" FROM %s %s WHERE %s.%s = %s.%s",
		qualify(child.Schema, child.Name), relAlias,
		relAlias, quoteIdent(fk.Column),
		parent.ref(), quoteIdent(fk.ReferencedColumn))
	if len(embed.Filters) > 0 {
		b.write(" AND ")
		if err := b.writeFilters(childScope, embed.Filters); err != nil {
			return err
		}
	}
	if err := b.writeOrderBy(childScope, embed.Order); err != nil {
		return err
	}
	b.writef(") %s), '[]'::json) AS %s", subAlias, quoteIdent(embed.Table))
	return nil
}
