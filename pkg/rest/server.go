package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/edgeflare/pgbase/pkg/auth"
	"github.com/edgeflare/pgbase/pkg/httputil"
	"github.com/edgeflare/pgbase/pkg/pgq/schema"
)

// DefaultSchema is the schema assumed for single-segment table routes.
const DefaultSchema = "public"

// maxBodyBytes caps mutation and RPC payloads.
const maxBodyBytes = 4 << 20

// Handler exposes the table and RPC routes.
type Handler struct {
	engine        *Engine
	source        SchemaSource
	defaultSchema string
	logger        *zap.Logger
}

func NewHandler(engine *Engine, source SchemaSource, defaultSchema string, logger *zap.Logger) *Handler {
	if defaultSchema == "" {
		defaultSchema = DefaultSchema
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, source: source, defaultSchema: defaultSchema, logger: logger}
}

// RegisterRoutes mounts the REST surface. Literal segments (rpc, auth) take
// precedence over the {schema}/{table} wildcards in the mux. HEAD is not
// registered separately: the mux routes HEAD through the GET patterns, and
// respond suppresses the body for it.
func (h *Handler) RegisterRoutes(r *httputil.Router) {
	r.HandleFunc("GET /rpc/{function}", h.callFunction)
	r.HandleFunc("POST /rpc/{function}", h.callFunction)

	for _, route := range []struct {
		pattern string
		fn      http.HandlerFunc
	}{
		{"GET /{table}", h.get},
		{"POST /{table}", h.post},
		{"PATCH /{table}", h.patch},
		{"DELETE /{table}", h.delete},
		{"GET /{schema}/{table}", h.get},
		{"POST /{schema}/{table}", h.post},
		{"PATCH /{schema}/{table}", h.patch},
		{"DELETE /{schema}/{table}", h.delete},
	} {
		r.HandleFunc(route.pattern, route.fn)
	}
}

func (h *Handler) target(r *http.Request) (schemaName, table string) {
	schemaName = r.PathValue("schema")
	if schemaName == "" {
		schemaName = h.defaultSchema
	}
	return schemaName, r.PathValue("table")
}

func sessionFrom(r *http.Request) auth.SessionContext {
	if v, ok := httputil.Session(r); ok {
		if sc, ok := v.(auth.SessionContext); ok {
			return sc
		}
	}
	return auth.SessionContext{Role: auth.RoleAnon}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	schemaName, table := h.target(r)
	q, err := ParseRequest(r, schemaName, table)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	res, err := h.engine.Select(r.Context(), sessionFrom(r), q)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	h.respond(w, r, q, res)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	schemaName, table := h.target(r)
	q, err := ParseRequest(r, schemaName, table)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	payload, err := decodeRows(r)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	res, err := h.engine.Insert(r.Context(), sessionFrom(r), q, payload)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	h.respond(w, r, q, res)
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	schemaName, table := h.target(r)
	q, err := ParseRequest(r, schemaName, table)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	var payload map[string]any
	if err := decodeJSON(r, &payload); err != nil {
		WriteQueryError(w, err)
		return
	}
	res, err := h.engine.Update(r.Context(), sessionFrom(r), q, payload)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	h.respond(w, r, q, res)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	schemaName, table := h.target(r)
	q, err := ParseRequest(r, schemaName, table)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	res, err := h.engine.Delete(r.Context(), sessionFrom(r), q)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	h.respond(w, r, q, res)
}

func (h *Handler) callFunction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("function")
	fn, ok := h.source.Function(h.defaultSchema, name)
	if !ok {
		WriteQueryError(w, errFunctionNotFound(h.defaultSchema, name))
		return
	}

	var args map[string]any
	values := r.URL.Query()
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &args); err != nil {
			WriteQueryError(w, err)
			return
		}
	} else {
		// on GET, params matching declared argument names are call
		// arguments; the rest parse as result filters
		args, values = splitFunctionArgs(fn, values)
	}

	q := &Query{
		Schema:       fn.Schema,
		Table:        fn.Name,
		Prefer:       parsePrefer(r),
		SingleObject: wantsSingular(r),
		CSV:          wantsCSV(r),
	}
	if err := parseQueryValues(q, values); err != nil {
		WriteQueryError(w, err)
		return
	}
	res, err := h.engine.Call(r.Context(), sessionFrom(r), q, args)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	h.respond(w, r, q, res)
}

func splitFunctionArgs(fn schema.Function, values url.Values) (map[string]any, url.Values) {
	declared := map[string]struct{}{}
	for _, name := range fn.ArgNames {
		declared[name] = struct{}{}
	}
	args := map[string]any{}
	rest := url.Values{}
	for key, vals := range values {
		if _, ok := declared[key]; ok && len(vals) > 0 {
			args[key] = vals[0]
			continue
		}
		rest[key] = vals
	}
	return args, rest
}

// respond writes the envelope; HEAD gets headers only.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, q *Query, res Result) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Range", contentRange(q, len(res.Rows), res.Total))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := WriteResult(w, q, res); err != nil {
		var apiErr *httputil.APIError
		if errors.As(err, &apiErr) {
			WriteQueryError(w, apiErr)
			return
		}
		h.logger.Error("write response", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return httputil.NewAPIError(http.StatusBadRequest, "invalid_json", "request body is not valid JSON").WithDetails(err.Error())
	}
	return nil
}

// decodeRows accepts a single JSON object or an array of objects, the two
// insert payload shapes.
func decodeRows(r *http.Request) ([]map[string]any, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, httputil.NewAPIError(http.StatusBadRequest, "invalid_json", "could not read request body")
	}
	if len(body) == 0 {
		return nil, errInvalidQuerySyntax("insert payload has no rows")
	}

	var many []map[string]any
	if err := json.Unmarshal(body, &many); err == nil {
		return many, nil
	}
	var one map[string]any
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, httputil.NewAPIError(http.StatusBadRequest, "invalid_json", "request body is not a JSON object or array of objects").WithDetails(err.Error())
	}
	return []map[string]any{one}, nil
}
