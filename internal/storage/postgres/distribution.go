package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/diceodds/internal/dice/probability"
	"github.com/cory-johannsen/diceodds/internal/odds"
)

// DistributionRepository is the durable odds.Store. Each row holds the dense
// masses and the smallest outcome of one distribution.
type DistributionRepository struct {
	db   *pgxpool.Pool
	opts []probability.Option
}

// NewDistributionRepository creates a DistributionRepository backed by the given pool.
// Loaded distributions are rebuilt with opts.
//
// Precondition: db must be a valid, open connection pool.
func NewDistributionRepository(db *pgxpool.Pool, opts ...probability.Option) *DistributionRepository {
	return &DistributionRepository{db: db, opts: opts}
}

// Get loads the distribution stored under key.
//
// Postcondition: Returns odds.ErrNotFound when no row matches.
func (r *DistributionRepository) Get(ctx context.Context, key string) (*probability.Distribution, error) {
	var t probability.Table
	err := r.db.QueryRow(ctx,
		`SELECT min_outcome, masses, incomplete
		 FROM distributions WHERE cache_key = $1`,
		key,
	).Scan(&t.Offset, &t.Masses, &t.Incomplete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, odds.ErrNotFound
		}
		return nil, fmt.Errorf("querying distribution: %w", err)
	}
	d, err := probability.FromTable(t, r.opts...)
	if err != nil {
		return nil, fmt.Errorf("decoding distribution %q: %w", key, err)
	}
	return d, nil
}

// Put upserts d under key.
//
// Precondition: d must be non-nil.
func (r *DistributionRepository) Put(ctx context.Context, key string, d *probability.Distribution) error {
	t := d.Table()
	_, err := r.db.Exec(ctx,
		`INSERT INTO distributions (cache_key, min_outcome, masses, incomplete)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE
		 SET min_outcome = EXCLUDED.min_outcome,
		     masses = EXCLUDED.masses,
		     incomplete = EXCLUDED.incomplete,
		     updated_at = NOW()`,
		key, t.Offset, t.Masses, t.Incomplete,
	)
	if err != nil {
		return fmt.Errorf("upserting distribution: %w", err)
	}
	return nil
}

// Delete removes the distribution stored under key.
//
// Postcondition: Returns odds.ErrNotFound when no row matched.
func (r *DistributionRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM distributions WHERE cache_key = $1`, key)
	if err != nil {
		return fmt.Errorf("deleting distribution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return odds.ErrNotFound
	}
	return nil
}
