package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// TxQuerier is implemented by both pgxpool.Pool and pgx.Tx.
// Repository methods that need transaction support should accept TxQuerier.
type TxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// The pool is deliberately small: it bounds concurrent DB-facing work
// and is the system's only backpressure mechanism. Connections are
// kept until the pool closes rather than recycled on a timer.
const (
	maxPoolSize     = 3
	noConnLifetime  = 100 * 365 * 24 * time.Hour
	noConnIdleLimit = 100 * 365 * 24 * time.Hour
)

// NewPool opens a PostgreSQL connection pool and verifies it with a
// single ping. There is no retry: the caller treats any failure here
// as the signal to run with persistence disabled.
func NewPool(ctx context.Context, url, user, password string, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	if user != "" {
		cfg.ConnConfig.User = user
	}
	if password != "" {
		cfg.ConnConfig.Password = password
	}
	if connectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = connectTimeout
	}
	cfg.MaxConns = maxPoolSize
	cfg.MaxConnLifetime = noConnLifetime
	cfg.MaxConnIdleTime = noConnIdleLimit

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	// Verify connection actually works
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Info().Str("host", cfg.ConnConfig.Host).Msg("database connection established")
	return pool, nil
}
