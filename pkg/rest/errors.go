package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/edgeflare/pgbase/pkg/httputil"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error constructors for the REST taxonomy. Parsing and building errors are
// raised synchronously and short-circuit before any SQL executes;
// execution-time errors are translated from the engine's SQLSTATE codes by
// mapExecError.

func errInvalidQuerySyntax(format string, args ...any) *httputil.APIError {
	return httputil.NewAPIError(http.StatusBadRequest, "invalid_query_syntax", fmt.Sprintf(format, args...))
}

func errInvalidFilter(format string, args ...any) *httputil.APIError {
	return httputil.NewAPIError(http.StatusBadRequest, "invalid_filter", fmt.Sprintf(format, args...))
}

func errInvalidOrderBy(format string, args ...any) *httputil.APIError {
	return httputil.NewAPIError(http.StatusBadRequest, "invalid_order_by", fmt.Sprintf(format, args...))
}

func errInvalidLimit(param, value string) *httputil.APIError {
	return httputil.NewAPIError(http.StatusBadRequest, "invalid_limit",
		fmt.Sprintf("%s must be a non-negative integer, got %q", param, value))
}

func errMissingRequiredParameter(format string, args ...any) *httputil.APIError {
	return httputil.NewAPIError(http.StatusBadRequest, "missing_required_parameter", fmt.Sprintf(format, args...))
}

func errTableNotFound(schemaName, table string) *httputil.APIError {
	return httputil.NewAPIError(http.StatusNotFound, "table_not_found",
		fmt.Sprintf("relation %s.%s does not exist", schemaName, table))
}

func errColumnNotFound(table, column string) *httputil.APIError {
	return httputil.NewAPIError(http.StatusBadRequest, "column_not_found",
		fmt.Sprintf("column %s.%s does not exist", table, column))
}

func errFunctionNotFound(schemaName, fn string) *httputil.APIError {
	return httputil.NewAPIError(http.StatusNotFound, "function_not_found",
		fmt.Sprintf("function %s.%s does not exist", schemaName, fn))
}

// errUnscopedMutation guards UPDATE/DELETE without a filter predicate: the
// builder refuses to produce a statement lacking a WHERE clause.
func errUnscopedMutation(op Operation) *httputil.APIError {
	return httputil.NewAPIError(http.StatusBadRequest, "unscoped_mutation",
		fmt.Sprintf("%s requires at least one filter", op))
}

func errSingularityMismatch(count int) *httputil.APIError {
	return httputil.NewAPIError(http.StatusNotAcceptable, "singular_response_mismatch",
		fmt.Sprintf("JSON object requested, %d rows returned", count))
}

// SQLSTATE classes the engine surfaces that map onto the REST taxonomy.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeUndefinedTable      = "42P01"
	codeUndefinedColumn     = "42703"
	codeUndefinedFunction   = "42883"
	codeInsufficientPriv    = "42501"
	codeRaiseException      = "P0001"
)

// mapExecError translates an execution-time error into the JSON error
// envelope by SQLSTATE, so raw engine errors never reach clients.
func mapExecError(err error) *httputil.APIError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return httputil.NewAPIError(http.StatusInternalServerError, "internal_error", "query execution failed")
	}

	switch pgErr.Code {
	case codeUniqueViolation, codeForeignKeyViolation, codeCheckViolation, codeNotNullViolation:
		return httputil.NewAPIError(http.StatusConflict, "constraint_violation", pgErr.Message).
			WithDetails(pgErr.Detail)
	case codeUndefinedTable:
		return httputil.NewAPIError(http.StatusNotFound, "table_not_found", pgErr.Message)
	case codeUndefinedColumn:
		return httputil.NewAPIError(http.StatusBadRequest, "column_not_found", pgErr.Message)
	case codeUndefinedFunction:
		return httputil.NewAPIError(http.StatusNotFound, "function_not_found", pgErr.Message)
	case codeInsufficientPriv:
		return httputil.NewAPIError(http.StatusForbidden, "permission_denied", pgErr.Message)
	case codeRaiseException:
		return httputil.NewAPIError(http.StatusBadRequest, "function_error", pgErr.Message).
			WithHint(pgErr.Hint)
	default:
		return httputil.NewAPIError(http.StatusInternalServerError, "database_error", pgErr.Message)
	}
}
