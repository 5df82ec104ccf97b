package database

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caresuite/bix-app/conf"
)

// Variable substitution to support testing.
var LogFatal = log.Fatal

// GetPgxPool opens a connection pool against DATABASE_URL. Callers own
// the pool and must Close it.
func GetPgxPool(ctx context.Context) *pgxpool.Pool {
	databaseURL := conf.GetEnv("DATABASE_URL")
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		LogFatal(err)
	}
	if pingErr := pool.Ping(ctx); pingErr != nil {
		LogFatal(pingErr)
	}
	return pool
}
