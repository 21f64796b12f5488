// Package db opens the Postgres pool backing the run journal.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName = "rastersalvage"

	// The journal writes one row per run, so a small pool is enough even
	// for concurrent batches.
	defaultMaxConns    = 4
	defaultConnectWait = 10 * time.Second
)

// Connect opens and pings a pool. Settings given in the URL win over the
// defaults applied here.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pg config: %w", err)
	}
	applyDefaults(cfg, databaseURL)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open db pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectWait)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func applyDefaults(cfg *pgxpool.Config, databaseURL string) {
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	if !hasParam(databaseURL, "pool_max_conns") {
		cfg.MaxConns = defaultMaxConns
	}
	if cfg.ConnConfig.ConnectTimeout == 0 {
		cfg.ConnConfig.ConnectTimeout = defaultConnectWait
	}
}

func hasParam(databaseURL, name string) bool {
	return strings.Contains(databaseURL, name+"=")
}
