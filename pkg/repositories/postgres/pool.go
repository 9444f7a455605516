// Package postgres provides PostgreSQL-backed repository implementations.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TFMV/sage/pkg/errors"
)

// NewPool creates a bounded pgx connection pool. Exhaustion blocks callers
// until a connection is released.
func NewPool(ctx context.Context, databaseURL string, maxConns int32, connMaxLifetime time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidRequest, "invalid database URL")
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if connMaxLifetime > 0 {
		cfg.MaxConnLifetime = connMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "database ping failed")
	}

	return pool, nil
}
