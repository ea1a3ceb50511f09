// Package store holds the SQL repositories. Queries are written with ?
// placeholders and rebound for the connected driver, so the same store runs
// against SQLite and PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dukerupert/homewise/internal/database"
)

// get runs a single-row query and returns (nil, nil) when no row matches.
func get[T any](ctx context.Context, q database.Querier, query string, args ...any) (*T, error) {
	var v T
	err := q.GetContext(ctx, &v, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func list[T any](ctx context.Context, q database.Querier, query string, args ...any) ([]T, error) {
	items := []T{}
	if err := q.SelectContext(ctx, &items, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	return items, nil
}

func exec(ctx context.Context, q database.Querier, query string, args ...any) (int64, error) {
	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func now() time.Time {
	return time.Now().UTC()
}
