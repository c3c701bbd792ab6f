package sequence

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Store is satisfied by *pgxpool.Pool and pgxmock pools.
type Store interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	store Store
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// NextSequence numbers events per machine. The first call for a partition
// returns 1; the upsert keeps concurrent publishers from sharing a number.
func (r *Repository) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	var seq int64
	err := r.store.QueryRow(ctx, `
		INSERT INTO event_sequence (partition_key, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (partition_key)
		DO UPDATE SET last_sequence = event_sequence.last_sequence + 1, updated_at = now()
		RETURNING last_sequence
	`, partitionKey).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// Counter hands out sequences from memory. Used when no database is
// configured; numbering restarts with the process.
type Counter struct {
	mu   sync.Mutex
	last map[string]int64
}

func NewCounter() *Counter {
	return &Counter{last: make(map[string]int64)}
}

func (c *Counter) NextSequence(_ context.Context, partitionKey string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[partitionKey]++
	return c.last[partitionKey], nil
}
