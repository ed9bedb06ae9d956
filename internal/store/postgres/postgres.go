package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noahpengding/peng-finance/internal/store"
)

var (
	_ store.TransactionStore = (*Storage)(nil)
	_ store.MappingStore     = (*Storage)(nil)
	_ store.RuleStore        = (*Storage)(nil)
	_ store.UserStore        = (*Storage)(nil)
)

// Storage implements the store interfaces on a pgx connection pool.
type Storage struct {
	db *pgxpool.Pool
}

// NewStorage wraps an existing pool.
func NewStorage(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

// Connect opens a pool against databaseURL and pings it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("Connect: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: pinging database: %w", err)
	}
	return pool, nil
}
