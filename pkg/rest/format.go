package rest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/edgeflare/pgbase/pkg/httputil"
)

// Result is what the engine hands the formatter: the rows (nil for
// minimal-return mutations), the affected-row count, and the exact total
// when a count was requested.
type Result struct {
	Op       Operation
	Rows     []map[string]any
	Affected int64
	Total    *int64
}

// WriteResult renders the response envelope: a JSON array by default, an
// unwrapped object in single-object mode, CSV on request, 204 for
// minimal-return mutations.
func WriteResult(w http.ResponseWriter, q *Query, res Result) error {
	if !res.Op.IsRead() && !q.Prefer.WantsRepresentation() {
		// created rows get 201 even without a body; other mutations 204
		if res.Op == OpInsert || res.Op == OpUpsert {
			w.WriteHeader(http.StatusCreated)
		} else {
			w.WriteHeader(http.StatusNoContent)
		}
		return nil
	}

	w.Header().Set("Content-Range", contentRange(q, len(res.Rows), res.Total))
	status := http.StatusOK
	if res.Op == OpInsert || res.Op == OpUpsert {
		status = http.StatusCreated
	}

	if q.SingleObject {
		if len(res.Rows) != 1 {
			return errSingularityMismatch(len(res.Rows))
		}
		w.Header().Set("Content-Type", mediaTypeSingular)
		w.WriteHeader(status)
		return json.NewEncoder(w).Encode(res.Rows[0])
	}
	if q.CSV {
		w.Header().Set("Content-Type", mediaTypeCSV)
		w.WriteHeader(status)
		return writeCSV(w, res.Rows)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	rows := res.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	return json.NewEncoder(w).Encode(rows)
}

// contentRange renders items <start>-<end>/<total>, with * in place of the
// total unless an exact count was computed, and * in place of the range when
// the page is empty.
func contentRange(q *Query, returned int, total *int64) string {
	totalPart := "*"
	if total != nil {
		totalPart = strconv.FormatInt(*total, 10)
	}
	if returned == 0 {
		return "items */" + totalPart
	}
	start := 0
	if q.Offset != nil {
		start = *q.Offset
	}
	return fmt.Sprintf("items %d-%d/%s", start, start+returned-1, totalPart)
}

// writeCSV renders rows as RFC 4180 CSV. The header comes from the first
// row's keys, sorted so the column order is stable.
func writeCSV(w http.ResponseWriter, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		header = append(header, col)
	}
	sort.Strings(header)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			record[i] = csvField(row[col])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// WriteQueryError sends a taxonomy error, widening anything unexpected to an
// opaque 500 via the shared helper.
func WriteQueryError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}
