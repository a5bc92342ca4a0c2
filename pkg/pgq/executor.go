package pgq

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor is the single execution boundary the query engine depends on.
// Connection pooling, transactions and statement timeouts live behind it.
type Executor interface {
	// Query runs sql with positional args and returns all result rows as maps
	// keyed by column name.
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
	// Exec runs sql with positional args and returns the affected row count.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// PoolExecutor implements Executor on top of a pgxpool.Pool.
type PoolExecutor struct {
	pool *pgxpool.Pool
}

func NewPoolExecutor(pool *pgxpool.Pool) *PoolExecutor {
	return &PoolExecutor{pool: pool}
}

func (e *PoolExecutor) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return RowsToMaps(rows)
}

func (e *PoolExecutor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := e.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RowsToMaps drains rows into a slice of column-name-keyed maps.
func RowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	fieldDescriptions := rows.FieldDescriptions()
	columnNames := make([]string, len(fieldDescriptions))
	for i, fd := range fieldDescriptions {
		columnNames[i] = string(fd.Name)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePointers := make([]any, len(columnNames))
		for i := range values {
			valuePointers[i] = &values[i]
		}

		if err := rows.Scan(valuePointers...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columnNames))
		for i, name := range columnNames {
			rowMap[name] = values[i]
		}
		result = append(result, rowMap)
	}

	return result, rows.Err()
}
