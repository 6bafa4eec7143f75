// Package app assembles the stores, chain clients and services shared by
// the server and the operator CLI.
package app

import (
	"context"
	"fmt"

	"github.com/decred/slog"

	"arcade-pot/internal/config"
	"arcade-pot/internal/storage"
	chstore "arcade-pot/internal/storage/clickhouse"
	"arcade-pot/internal/storage/memory"
	"arcade-pot/internal/storage/migrations"
	pgstore "arcade-pot/internal/storage/postgres"
)

// Stores holds all storage implementations.
type Stores struct {
	Payments storage.PaymentStore
	Scores   storage.ScoreStore
	Winners  storage.WinnerStore
	Attempts storage.AttemptLog
}

// OpenStores creates the configured stores and applies migrations.
// The returned cleanup closes every connection.
func OpenStores(ctx context.Context, cfg config.StorageConfig, log slog.Logger) (*Stores, func(), error) {
	var (
		stores   *Stores
		closers  []func()
		closeAll = func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	)

	if cfg.UseMemory {
		payments := memory.NewPaymentStore()
		stores = &Stores{
			Payments: payments,
			Scores:   memory.NewScoreStore(payments),
			Winners:  memory.NewWinnerStore(),
		}
		log.Warnf("Using in-memory storage; state is lost on restart")
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores = &Stores{
			Payments: pgstore.NewPaymentStore(pool),
			Scores:   pgstore.NewScoreStore(pool),
			Winners:  pgstore.NewWinnerStore(pool),
		}
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.Attempts = chstore.NewAttemptLog(conn)
	} else {
		stores.Attempts = memory.NewAttemptLog()
	}

	return stores, closeAll, nil
}
