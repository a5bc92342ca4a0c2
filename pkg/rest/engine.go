package rest

import (
	"context"

	"go.uber.org/zap"

	"github.com/edgeflare/pgbase/pkg/auth"
	"github.com/edgeflare/pgbase/pkg/metrics"
	"github.com/edgeflare/pgbase/pkg/pgq"
	"github.com/edgeflare/pgbase/pkg/pgq/schema"
)

// AccessEnforcer injects row-security predicates into a Query before it is
// compiled. Implementations return a derived copy, never mutate the input,
// and always report whether enforcement applied so callers can audit.
type AccessEnforcer interface {
	Apply(ctx context.Context, sess auth.SessionContext, op Operation, q *Query) (*Query, bool, error)
}

// PayloadEnforcer is the write-side counterpart of AccessEnforcer: filter
// predicates cannot constrain an INSERT, so ownership is enforced on the
// payload rows instead. Implementations return derived rows, never mutate the
// input, and report whether enforcement applied.
type PayloadEnforcer interface {
	ApplyPayload(ctx context.Context, sess auth.SessionContext, q *Query, rows []map[string]any) ([]map[string]any, bool, error)
}

// SchemaSource is the slice of the schema cache the engine needs.
type SchemaSource interface {
	Snapshot() schema.Snapshot
	Function(schemaName, name string) (schema.Function, bool)
}

// estimatedCountThreshold is the planner estimate above which count=estimated
// skips the exact pass and reports an unknown total.
const estimatedCountThreshold = 1000

// Engine sequences one request: enforce row security, compile, execute,
// optionally run the count companion, and hand rows to the formatter.
type Engine struct {
	exec     pgq.Executor
	source   SchemaSource
	enforcer AccessEnforcer
	logger   *zap.Logger
}

func NewEngine(exec pgq.Executor, source SchemaSource, enforcer AccessEnforcer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{exec: exec, source: source, enforcer: enforcer, logger: logger}
}

// Select runs a read and, when requested, its count companion.
func (e *Engine) Select(ctx context.Context, sess auth.SessionContext, q *Query) (Result, error) {
	q, err := e.enforce(ctx, sess, OpSelect, q)
	if err != nil {
		return Result{}, err
	}
	snap := e.source.Snapshot()
	stmt, err := BuildSelect(snap, q)
	if err != nil {
		return Result{}, err
	}
	rows, err := e.query(ctx, OpSelect, stmt)
	if err != nil {
		return Result{}, err
	}
	res := Result{Op: OpSelect, Rows: rows, Affected: int64(len(rows))}
	res.Total, err = e.countTotal(ctx, snap, q)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// countTotal runs the companion count pass. Exact counts re-run the filters
// under count(*). Estimated counts consult the planner first and fall back to
// an exact pass only for small relations; planned counts never produce a
// total the Content-Range contract would render.
func (e *Engine) countTotal(ctx context.Context, snap schema.Snapshot, q *Query) (*int64, error) {
	switch q.Prefer.Count {
	case CountExact:
		return e.exactCount(ctx, snap, q)
	case CountEstimated:
		stmt := BuildPlannedCount(q)
		rows, err := e.query(ctx, OpSelect, stmt)
		if err != nil {
			return nil, err
		}
		if estimate := countFromRows(rows); estimate >= 0 && estimate <= estimatedCountThreshold {
			return e.exactCount(ctx, snap, q)
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (e *Engine) exactCount(ctx context.Context, snap schema.Snapshot, q *Query) (*int64, error) {
	stmt, err := BuildCount(snap, q)
	if err != nil {
		return nil, err
	}
	rows, err := e.query(ctx, OpSelect, stmt)
	if err != nil {
		return nil, err
	}
	if n := countFromRows(rows); n >= 0 {
		return &n, nil
	}
	return nil, nil
}

func countFromRows(rows []map[string]any) int64 {
	if len(rows) == 0 {
		return -1
	}
	switch n := rows[0]["count"].(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return -1
	}
}

// Insert runs an INSERT, or an upsert when Prefer: resolution is set. Row
// security applies to the payload, not the (unused) filter set.
func (e *Engine) Insert(ctx context.Context, sess auth.SessionContext, q *Query, payload []map[string]any) (Result, error) {
	op := OpInsert
	if q.Prefer.IsUpsert() {
		op = OpUpsert
	}
	payload, err := e.enforcePayload(ctx, sess, op, q, payload)
	if err != nil {
		return Result{}, err
	}
	stmt, err := BuildInsert(e.source.Snapshot(), q, payload)
	if err != nil {
		return Result{}, err
	}
	return e.runMutation(ctx, op, q, stmt)
}

// Update runs a PATCH-style partial update.
func (e *Engine) Update(ctx context.Context, sess auth.SessionContext, q *Query, payload map[string]any) (Result, error) {
	q, err := e.enforce(ctx, sess, OpUpdate, q)
	if err != nil {
		return Result{}, err
	}
	stmt, err := BuildUpdate(e.source.Snapshot(), q, payload)
	if err != nil {
		return Result{}, err
	}
	return e.runMutation(ctx, OpUpdate, q, stmt)
}

// Delete removes the filtered rows.
func (e *Engine) Delete(ctx context.Context, sess auth.SessionContext, q *Query) (Result, error) {
	q, err := e.enforce(ctx, sess, OpDelete, q)
	if err != nil {
		return Result{}, err
	}
	stmt, err := BuildDelete(e.source.Snapshot(), q)
	if err != nil {
		return Result{}, err
	}
	return e.runMutation(ctx, OpDelete, q, stmt)
}

// Call invokes a database function. Filters, order and pagination apply to
// the returned rows in memory.
func (e *Engine) Call(ctx context.Context, sess auth.SessionContext, q *Query, args map[string]any) (Result, error) {
	fn, ok := e.source.Function(q.Schema, q.Table)
	if !ok {
		return Result{}, errFunctionNotFound(q.Schema, q.Table)
	}
	q, err := e.enforce(ctx, sess, OpCall, q)
	if err != nil {
		return Result{}, err
	}
	stmt, err := BuildCall(fn, args)
	if err != nil {
		return Result{}, err
	}
	rows, err := e.query(ctx, OpCall, stmt)
	if err != nil {
		return Result{}, err
	}
	rows, err = applyFilters(rows, q.Filters)
	if err != nil {
		return Result{}, err
	}
	applyOrder(rows, q.Order)
	res := Result{Op: OpCall}
	if q.Prefer.Count == CountExact {
		// the filtered set is already in memory, so the exact total is free
		total := int64(len(rows))
		res.Total = &total
	}
	res.Rows = applyPagination(rows, q.Limit, q.Offset)
	res.Affected = int64(len(res.Rows))
	return res, nil
}

func (e *Engine) runMutation(ctx context.Context, op Operation, q *Query, stmt Statement) (Result, error) {
	if q.Prefer.WantsRepresentation() {
		rows, err := e.query(ctx, op, stmt)
		if err != nil {
			return Result{}, err
		}
		return Result{Op: op, Rows: rows, Affected: int64(len(rows))}, nil
	}
	affected, err := e.exec.Exec(ctx, stmt.SQL, stmt.Args...)
	metrics.QueriesTotal.WithLabelValues(op.String(), outcomeLabel(err)).Inc()
	if err != nil {
		return Result{}, mapExecError(err)
	}
	return Result{Op: op, Affected: affected}, nil
}

// query executes stmt and maps driver errors to the API taxonomy.
func (e *Engine) query(ctx context.Context, op Operation, stmt Statement) ([]map[string]any, error) {
	rows, err := e.exec.Query(ctx, stmt.SQL, stmt.Args...)
	metrics.QueriesTotal.WithLabelValues(op.String(), outcomeLabel(err)).Inc()
	if err != nil {
		return nil, mapExecError(err)
	}
	return rows, nil
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// enforce applies row security and logs whether enforcement happened, so a
// policy gap is visible in the audit trail rather than a silent no-op.
func (e *Engine) enforce(ctx context.Context, sess auth.SessionContext, op Operation, q *Query) (*Query, error) {
	if e.enforcer == nil {
		return q, nil
	}
	derived, enforced, err := e.enforcer.Apply(ctx, sess, op, q)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("row security",
		zap.String("table", q.Schema+"."+q.Table),
		zap.String("operation", op.String()),
		zap.String("role", string(sess.Role)),
		zap.Bool("enforced", enforced),
	)
	return derived, nil
}

func (e *Engine) enforcePayload(ctx context.Context, sess auth.SessionContext, op Operation, q *Query, payload []map[string]any) ([]map[string]any, error) {
	pe, ok := e.enforcer.(PayloadEnforcer)
	if !ok {
		return payload, nil
	}
	derived, enforced, err := pe.ApplyPayload(ctx, sess, q, payload)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("row security",
		zap.String("table", q.Schema+"."+q.Table),
		zap.String("operation", op.String()),
		zap.String("role", string(sess.Role)),
		zap.Bool("enforced", enforced),
	)
	return derived, nil
}
