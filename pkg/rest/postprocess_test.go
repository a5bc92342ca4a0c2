package rest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []map[string]any {
	return []map[string]any{
		{"id": int64(1), "name": "Widget", "price": 9.99, "category": "tools"},
		{"id": int64(2), "name": "Gadget", "price": 24.50, "category": "tools"},
		{"id": int64(3), "name": "Gizmo", "price": 99.00, "category": nil},
	}
}

func TestApplyFilters(t *testing.T) {
	testCases := []struct {
		name    string
		filter  FilterNode
		wantIDs []int64
	}{
		{
			name:    "numeric comparison",
			filter:  FilterNode{Column: "price", Operator: "lt", Value: "25"},
			wantIDs: []int64{1, 2},
		},
		{
			name:    "equality",
			filter:  FilterNode{Column: "name", Operator: "eq", Value: "Gizmo"},
			wantIDs: []int64{3},
		},
		{
			name:    "is null",
			filter:  FilterNode{Column: "category", Operator: "is", Value: nil},
			wantIDs: []int64{3},
		},
		{
			name:    "negated is null",
			filter:  FilterNode{Column: "category", Operator: "is", Value: nil, Negate: true},
			wantIDs: []int64{1, 2},
		},
		{
			name:    "in list",
			filter:  FilterNode{Column: "name", Operator: "in", Value: []string{"Widget", "Gizmo"}},
			wantIDs: []int64{1, 3},
		},
		{
			name:    "ilike with wildcard",
			filter:  FilterNode{Column: "name", Operator: "ilike", Value: "g*"},
			wantIDs: []int64{2, 3},
		},
		{
			name: "or combinator",
			filter: FilterNode{Combinator: "or", Children: []FilterNode{
				{Column: "id", Operator: "eq", Value: "1"},
				{Column: "price", Operator: "gt", Value: "50"},
			}},
			wantIDs: []int64{1, 3},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := applyFilters(sampleRows(), []FilterNode{tc.filter})
			require.NoError(t, err)
			ids := make([]int64, 0, len(got))
			for _, row := range got {
				ids = append(ids, row["id"].(int64))
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func TestApplyFiltersUnsupportedOperator(t *testing.T) {
	_, err := applyFilters(sampleRows(), []FilterNode{{Column: "name", Operator: "cs", Value: "x"}})
	assert.Error(t, err)
}

func TestApplyOrder(t *testing.T) {
	rows := sampleRows()
	applyOrder(rows, []OrderSpec{{Column: "price", Desc: true}})
	assert.Equal(t, int64(3), rows[0]["id"])
	assert.Equal(t, int64(1), rows[2]["id"])

	applyOrder(rows, []OrderSpec{{Column: "category", Nulls: "first"}})
	assert.Nil(t, rows[0]["category"])
}

func TestApplyPagination(t *testing.T) {
	two, five := 2, 5
	rows := applyPagination(sampleRows(), &two, nil)
	assert.Len(t, rows, 2)

	one := 1
	rows = applyPagination(sampleRows(), nil, &one)
	assert.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0]["id"])

	rows = applyPagination(sampleRows(), &two, &five)
	assert.Empty(t, rows)
}
