package rest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeflare/pgbase/internal/testutil"
)

func TestBuildInsert(t *testing.T) {
	q := &Query{Schema: "public", Table: "products", Select: []SelectNode{{Column: "*"}}}
	rows := []map[string]any{{"name": "Widget", "price": 9.99}}

	stmt, err := BuildInsert(testutil.Snapshot(), q, rows)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO public.products (name, price) VALUES ($1, $2)", stmt.SQL)
	assert.Equal(t, []any{"Widget", 9.99}, stmt.Args)
	requireValidSQL(t, stmt.SQL)
}

func TestBuildInsertBulkWithDefaults(t *testing.T) {
	q := &Query{Schema: "public", Table: "products", Select: []SelectNode{{Column: "*"}}}
	rows := []map[string]any{
		{"name": "Widget", "price": 9.99},
		{"name": "Gadget", "category": "tools"},
	}

	stmt, err := BuildInsert(testutil.Snapshot(), q, rows)
	require.NoError(t, err)
	// column set is the sorted union; absent values become DEFAULT
	assert.Equal(t, "INSERT INTO public.products (category, name, price) VALUES (DEFAULT, $1, $2), ($3, $4, DEFAULT)", stmt.SQL)
	assert.Equal(t, []any{"Widget", 9.99, "tools", "Gadget"}, stmt.Args)
	requireValidSQL(t, stmt.SQL)
}

func TestBuildInsertRepresentation(t *testing.T) {
	q := &Query{
		Schema: "public", Table: "products",
		Select: []SelectNode{{Column: "id"}, {Column: "name"}},
		Prefer: Prefer{Return: "representation"},
	}
	stmt, err := BuildInsert(testutil.Snapshot(), q, []map[string]any{{"name": "Widget"}})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO public.products (name) VALUES ($1) RETURNING id, name", stmt.SQL)
	requireValidSQL(t, stmt.SQL)
}

func TestBuildInsertJSONValue(t *testing.T) {
	q := &Query{Schema: "public", Table: "products", Select: []SelectNode{{Column: "*"}}}
	stmt, err := BuildInsert(testutil.Snapshot(), q, []map[string]any{
		{"name": "Widget", "tags": []any{"sale", "new"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"Widget", `["sale","new"]`}, stmt.Args)
	requireValidSQL(t, stmt.SQL)
}

func TestBuildInsertUnknownColumn(t *testing.T) {
	q := &Query{Schema: "public", Table: "products", Select: []SelectNode{{Column: "*"}}}
	_, err := BuildInsert(testutil.Snapshot(), q, []map[string]any{{"colour": "red"}})
	assert.Error(t, err)
}

func TestBuildUpsert(t *testing.T) {
	testCases := []struct {
		name       string
		onConflict []string
		resolution string
		wantSQL    string
	}{
		{
			name:       "merge duplicates with explicit target",
			onConflict: []string{"name"},
			resolution: "merge-duplicates",
			wantSQL:    "INSERT INTO public.products (name, price) VALUES ($1, $2) ON CONFLICT (name) DO UPDATE SET price = EXCLUDED.price",
		},
		{
			name:       "merge duplicates falls back to primary key",
			resolution: "merge-duplicates",
			wantSQL:    "INSERT INTO public.products (name, price) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price",
		},
		{
			name:       "ignore duplicates",
			onConflict: []string{"name"},
			resolution: "ignore-duplicates",
			wantSQL:    "INSERT INTO public.products (name, price) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := &Query{
				Schema: "public", Table: "products",
				Select:     []SelectNode{{Column: "*"}},
				OnConflict: tc.onConflict,
				Prefer:     Prefer{Resolution: tc.resolution},
			}
			stmt, err := BuildInsert(testutil.Snapshot(), q, []map[string]any{{"name": "Widget", "price": 9.99}})
			require.NoError(t, err)
			assert.Equal(t, tc.wantSQL, stmt.SQL)
			requireValidSQL(t, stmt.SQL)
		})
	}
}

func TestBuildUpdate(t *testing.T) {
	q, err := parseURL(t, "price=lt.5")
	require.NoError(t, err)
	q.Prefer = Prefer{Return: "representation"}

	stmt, err := BuildUpdate(testutil.Snapshot(), q, map[string]any{"category": "clearance", "price": 1.99})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE public.products SET category = $1, price = $2 WHERE price < $3 RETURNING *", stmt.SQL)
	assert.Equal(t, []any{"clearance", 1.99, "5"}, stmt.Args)
	requireValidSQL(t, stmt.SQL)
}

func TestBuildDelete(t *testing.T) {
	q, err := parseURL(t, "category=eq.discontinued")
	require.NoError(t, err)

	stmt, err := BuildDelete(testutil.Snapshot(), q)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM public.products WHERE category = $1", stmt.SQL)
	assert.Equal(t, []any{"discontinued"}, stmt.Args)
	requireValidSQL(t, stmt.SQL)
}

// A mutation without a filter must never produce a statement lacking a WHERE
// clause.
func TestUnscopedMutationGuard(t *testing.T) {
	q := &Query{Schema: "public", Table: "products", Select: []SelectNode{{Column: "*"}}}

	_, err := BuildUpdate(testutil.Snapshot(), q, map[string]any{"price": 0})
	assert.Error(t, err)

	_, err = BuildDelete(testutil.Snapshot(), q)
	assert.Error(t, err)
}

func TestMutationInjectionSafety(t *testing.T) {
	hostile := `'; DROP TABLE products; --`
	q := &Query{
		Schema: "public", Table: "products",
		Select:  []SelectNode{{Column: "*"}},
		Filters: []FilterNode{{Column: "name", Operator: "eq", Value: hostile}},
	}
	stmt, err := BuildUpdate(testutil.Snapshot(), q, map[string]any{"name": hostile})
	require.NoError(t, err)
	assert.NotContains(t, stmt.SQL, hostile)
	assert.Equal(t, []any{hostile, hostile}, stmt.Args)
	requireValidSQL(t, stmt.SQL)
}
