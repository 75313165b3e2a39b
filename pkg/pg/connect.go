package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool and verifies it with a ping,
// retrying per the config before giving up.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.ConnString == "" {
		return nil, ErrEmptyConnString
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConnString, err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var pool *pgxpool.Pool
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryInterval):
			}
		}

		pool, lastErr = pgxpool.NewWithConfig(ctx, poolCfg)
		if lastErr != nil {
			continue
		}
		if lastErr = pool.Ping(ctx); lastErr == nil {
			return pool, nil
		}
		pool.Close()
	}

	return nil, errors.Join(ErrFailedToOpenDB, lastErr)
}
