// Package rls enforces row-level security for engines without native
// session-scoped policies. Policies are structured metadata per relation;
// enforcement derives a filtered copy of the query descriptor instead of
// rewriting statement text.
package rls

import (
	"context"
	"maps"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/edgeflare/pgbase/pkg/auth"
	"github.com/edgeflare/pgbase/pkg/httputil"
	"github.com/edgeflare/pgbase/pkg/metrics"
	"github.com/edgeflare/pgbase/pkg/rest"
)

// Enforcer implements rest.AccessEnforcer over a policy registry.
type Enforcer struct {
	registry *Registry
	logger   *zap.Logger
}

func NewEnforcer(registry *Registry, logger *zap.Logger) *Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enforcer{registry: registry, logger: logger}
}

// Apply injects the ownership predicate for the session. The input query is
// never mutated; callers get either the same pointer (no enforcement) or a
// derived copy. The enforced flag is reported in both cases so callers can
// audit that protection was applied, or observably was not.
func (e *Enforcer) Apply(ctx context.Context, sess auth.SessionContext, op rest.Operation, q *rest.Query) (*rest.Query, bool, error) {
	enforced := false
	defer func() {
		metrics.RLSDecisions.WithLabelValues(string(sess.Role), strconv.FormatBool(enforced)).Inc()
	}()

	if op == rest.OpInsert || op == rest.OpUpsert {
		// a filter predicate cannot constrain an INSERT; ApplyPayload owns
		// those, so claiming enforcement here would be a lie
		return q, false, nil
	}
	if sess.BypassesRLS() {
		return q, false, nil
	}
	policy, ok := e.registry.Lookup(q.Schema, q.Table)
	if !ok {
		// no policy means the table is open; the false flag makes that
		// visible to the audit trail
		return q, false, nil
	}
	if sess.Role == auth.RoleAnon && policy.AnonRead && op.IsRead() {
		return q, false, nil
	}

	enforced = true
	derived := *q
	derived.Filters = append(append([]rest.FilterNode{}, q.Filters...), e.predicate(policy, sess))
	e.logger.Debug("ownership predicate injected",
		zap.String("table", q.Schema+"."+q.Table),
		zap.String("role", string(sess.Role)),
		zap.String("operation", op.String()),
	)
	return &derived, true, nil
}

// ApplyPayload enforces ownership on insert/upsert payloads: the owner column
// is stamped with the session's user id, and a payload claiming another owner
// is rejected. Sessions without a user id cannot own rows and may not insert
// into a governed table at all.
func (e *Enforcer) ApplyPayload(ctx context.Context, sess auth.SessionContext, q *rest.Query, rows []map[string]any) ([]map[string]any, bool, error) {
	enforced := false
	defer func() {
		metrics.RLSDecisions.WithLabelValues(string(sess.Role), strconv.FormatBool(enforced)).Inc()
	}()

	if sess.BypassesRLS() {
		return rows, false, nil
	}
	policy, ok := e.registry.Lookup(q.Schema, q.Table)
	if !ok {
		return rows, false, nil
	}
	enforced = true
	if sess.UserID == "" {
		return nil, true, httputil.NewAPIError(http.StatusForbidden, "permission_denied",
			"anonymous sessions cannot insert into "+q.Schema+"."+q.Table)
	}

	derived := make([]map[string]any, len(rows))
	for i, row := range rows {
		if owner, present := row[policy.OwnerColumn]; present {
			if s, _ := owner.(string); s != sess.UserID {
				return nil, true, httputil.NewAPIError(http.StatusForbidden, "permission_denied",
					"rows must be owned by the requesting user")
			}
		}
		copied := make(map[string]any, len(row)+1)
		maps.Copy(copied, row)
		copied[policy.OwnerColumn] = sess.UserID
		derived[i] = copied
	}
	e.logger.Debug("ownership stamped on payload",
		zap.String("table", q.Schema+"."+q.Table),
		zap.String("role", string(sess.Role)),
		zap.Int("rows", len(derived)),
	)
	return derived, true, nil
}

// predicate builds the injected filter. A session without a user id can own
// nothing, so it gets a predicate the builder compiles to FALSE.
func (e *Enforcer) predicate(policy Policy, sess auth.SessionContext) rest.FilterNode {
	if sess.UserID == "" {
		return rest.FilterNode{Column: policy.OwnerColumn, Operator: "in", Value: []string{}}
	}
	return rest.FilterNode{Column: policy.OwnerColumn, Operator: "eq", Value: sess.UserID}
}
