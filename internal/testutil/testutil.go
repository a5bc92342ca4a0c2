// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"github.com/edgeflare/pgbase/pkg/pgq/schema"
)

// Snapshot returns a canned schema covering the shapes the builder and
// engine tests exercise: a products/reviews pair linked by a foreign key, a
// users table with an ownership column, and one callable function.
func Snapshot() schema.Snapshot {
	products := schema.Table{
		Schema: "public",
		Name:   "products",
		Type:   schema.TypeTable,
		Columns: []schema.Column{
			{Name: "id", DataType: "bigint", IsPrimaryKey: true},
			{Name: "name", DataType: "text"},
			{Name: "price", DataType: "numeric"},
			{Name: "category", DataType: "text", IsNullable: true},
			{Name: "owner_id", DataType: "uuid", IsNullable: true},
			{Name: "tags", DataType: "jsonb", IsNullable: true},
		},
		PrimaryKeys: []string{"id"},
	}
	reviews := schema.Table{
		Schema: "public",
		Name:   "reviews",
		Type:   schema.TypeTable,
		Columns: []schema.Column{
			{Name: "id", DataType: "bigint", IsPrimaryKey: true},
			{Name: "product_id", DataType: "bigint"},
			{Name: "rating", DataType: "integer"},
			{Name: "body", DataType: "text", IsNullable: true},
		},
		PrimaryKeys: []string{"id"},
		ForeignKeys: []schema.ForeignKey{
			{Column: "product_id", ReferencedSchema: "public", ReferencedTable: "products", ReferencedColumn: "id"},
		},
	}
	users := schema.Table{
		Schema: "public",
		Name:   "profiles",
		Type:   schema.TypeTable,
		Columns: []schema.Column{
			{Name: "id", DataType: "uuid", IsPrimaryKey: true},
			{Name: "email", DataType: "text"},
			{Name: "owner_id", DataType: "uuid"},
			{Name: "display_name", DataType: "text", IsNullable: true},
		},
		PrimaryKeys: []string{"id"},
	}
	return schema.Snapshot{
		"public.products": products,
		"public.reviews":  reviews,
		"public.profiles": users,
	}
}

// SearchFunction returns the canned function the RPC tests call.
func SearchFunction() schema.Function {
	return schema.Function{
		Schema:   "public",
		Name:     "search_products",
		ArgNames: []string{"query", "max_price"},
	}
}
