package rest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeflare/pgbase/internal/testutil"
)

func TestBuildCall(t *testing.T) {
	fn := testutil.SearchFunction()

	stmt, err := BuildCall(fn, map[string]any{"query": "widget", "max_price": 50})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM public.search_products(query => $1, max_price => $2)", stmt.SQL)
	assert.Equal(t, []any{"widget", 50}, stmt.Args)
	requireValidSQL(t, stmt.SQL)
}

func TestBuildCallOmitsDefaultedArgs(t *testing.T) {
	stmt, err := BuildCall(testutil.SearchFunction(), map[string]any{"query": "widget"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM public.search_products(query => $1)", stmt.SQL)
	requireValidSQL(t, stmt.SQL)
}

func TestBuildCallNoArgs(t *testing.T) {
	stmt, err := BuildCall(testutil.SearchFunction(), nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM public.search_products()", stmt.SQL)
	requireValidSQL(t, stmt.SQL)
}

func TestBuildCallUnknownArg(t *testing.T) {
	_, err := BuildCall(testutil.SearchFunction(), map[string]any{"colour": "red"})
	assert.Error(t, err)
}
