package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TFMV/sage/pkg/errors"
	"github.com/TFMV/sage/pkg/models"
	"github.com/TFMV/sage/pkg/repositories"
)

// queryRepository implements repositories.QueryRepository using pgx.
type queryRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewQueryRepository creates a PostgreSQL query repository. A non-zero
// timeout bounds each query execution.
func NewQueryRepository(pool *pgxpool.Pool, timeout time.Duration) repositories.QueryRepository {
	return &queryRepository{pool: pool, timeout: timeout}
}

// ExecuteQuery runs a query and materializes all rows, preserving the
// driver-reported column order.
func (r *queryRepository) ExecuteQuery(ctx context.Context, query string) ([]models.Row, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeQueryFailed, "query execution failed")
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	columns := make([]string, len(fds))
	for i, fd := range fds {
		columns[i] = fd.Name
	}

	var out []models.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeQueryFailed, "failed to read row values")
		}
		out = append(out, models.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeQueryFailed, "row iteration failed")
	}

	return out, nil
}
