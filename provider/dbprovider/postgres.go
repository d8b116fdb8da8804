package dbprovider

import (
	"context"
	"fmt"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// postgresDialector opens a traced pgx pool for dsn. The pool connects
// lazily, so an unreachable server surfaces on the first query.
func postgresDialector(ctx context.Context, dsn string) (gorm.Dialector, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pgxPool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err = otelpgx.RecordStats(pgxPool); err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("unable to record database stats: %w", err)
	}

	return postgres.New(postgres.Config{
		Conn:                 stdlib.OpenDBFromPool(pgxPool),
		PreferSimpleProtocol: true,
	}), nil
}
