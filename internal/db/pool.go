package db

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Pool is an alias for pgxpool.Pool
type Pool = pgxpool.Pool

// PoolConfig tunes the connection pool. Zero values keep pgx defaults.
type PoolConfig struct {
	URL             string
	MaxConns        int32
	ApplicationName string
}

// NewPool builds the PostgreSQL pool. The database is pinged on fx start so a
// wrong DATABASE_URL fails startup instead of the first request.
func NewPool(lc fx.Lifecycle, logger *zap.Logger, cfg PoolConfig) (*pgxpool.Pool, error) {
	masked := MaskPassword(cfg.URL)

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ApplicationName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to create connection pool: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				logger.Error("database ping failed", zap.Error(err), zap.String("url", masked))
				return fmt.Errorf("[DATABASE CONNECTION FAILED] cannot reach %s: %w", masked, err)
			}
			logger.Info("database pool ready",
				zap.String("url", masked),
				zap.Int32("max_conns", poolCfg.MaxConns),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			logger.Info("database pool closed")
			return nil
		},
	})

	return pool, nil
}

// MaskPassword hides the password of a connection URL for logging
func MaskPassword(databaseURL string) string {
	if databaseURL == "" {
		return "<empty>"
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
