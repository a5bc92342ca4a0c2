package rest

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeflare/pgbase/pkg/httputil"
)

func TestWriteResultJSONArray(t *testing.T) {
	w := httptest.NewRecorder()
	q := &Query{Schema: "public", Table: "products"}
	err := WriteResult(w, q, Result{Op: OpSelect, Rows: []map[string]any{
		{"id": 1, "name": "Widget"},
		{"id": 2, "name": "Gadget"},
	}})
	require.NoError(t, err)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "items 0-1/*", w.Header().Get("Content-Range"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Len(t, rows, 2)
}

func TestWriteResultEmptyIsArrayNotNull(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteResult(w, &Query{}, Result{Op: OpSelect})
	require.NoError(t, err)
	assert.JSONEq(t, "[]", w.Body.String())
	assert.Equal(t, "items */*", w.Header().Get("Content-Range"))
}

func TestWriteResultContentRange(t *testing.T) {
	offset := 4
	total := int64(42)
	w := httptest.NewRecorder()
	q := &Query{Offset: &offset}
	err := WriteResult(w, q, Result{Op: OpSelect, Rows: []map[string]any{{"id": 1}, {"id": 2}}, Total: &total})
	require.NoError(t, err)
	assert.Equal(t, "items 4-5/42", w.Header().Get("Content-Range"))
}

func TestWriteResultSingleObject(t *testing.T) {
	w := httptest.NewRecorder()
	q := &Query{SingleObject: true}
	err := WriteResult(w, q, Result{Op: OpSelect, Rows: []map[string]any{{"id": 1}}})
	require.NoError(t, err)
	assert.Equal(t, mediaTypeSingular, w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":1}`, w.Body.String())
}

func TestWriteResultSingleObjectMismatch(t *testing.T) {
	for _, rows := range [][]map[string]any{nil, {{"id": 1}, {"id": 2}}} {
		w := httptest.NewRecorder()
		err := WriteResult(w, &Query{SingleObject: true}, Result{Op: OpSelect, Rows: rows})
		require.Error(t, err)
		var apiErr *httputil.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 406, apiErr.Status)
	}
}

func TestWriteResultCSV(t *testing.T) {
	w := httptest.NewRecorder()
	q := &Query{CSV: true}
	err := WriteResult(w, q, Result{Op: OpSelect, Rows: []map[string]any{
		{"id": 1, "name": `say "hi", twice`},
	}})
	require.NoError(t, err)
	assert.Equal(t, mediaTypeCSV, w.Header().Get("Content-Type"))
	assert.Equal(t, "id,name\n1,\"say \"\"hi\"\", twice\"\n", w.Body.String())
}

func TestWriteResultMinimalMutations(t *testing.T) {
	testCases := []struct {
		op         Operation
		wantStatus int
	}{
		{OpInsert, 201},
		{OpUpsert, 201},
		{OpUpdate, 204},
		{OpDelete, 204},
	}
	for _, tc := range testCases {
		w := httptest.NewRecorder()
		err := WriteResult(w, &Query{}, Result{Op: tc.op, Affected: 1})
		require.NoError(t, err)
		assert.Equal(t, tc.wantStatus, w.Code)
		assert.Empty(t, w.Body.String())
	}
}

func TestWriteResultRepresentationInsert(t *testing.T) {
	w := httptest.NewRecorder()
	q := &Query{Prefer: Prefer{Return: "representation"}}
	err := WriteResult(w, q, Result{Op: OpInsert, Rows: []map[string]any{{"id": 1}}, Affected: 1})
	require.NoError(t, err)
	assert.Equal(t, 201, w.Code)
	assert.JSONEq(t, `[{"id":1}]`, w.Body.String())
}
