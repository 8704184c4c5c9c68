package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/contentcore/internal/domain"
)

type idempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore wires an idempotency key store backed by pgxpool.
func NewIdempotencyStore(pool *pgxpool.Pool) IdempotencyStore {
	return &idempotencyStore{pool: pool}
}

// Claim inserts the key. ON CONFLICT DO NOTHING makes the insert the atomic
// check-and-set point: of two concurrent claims exactly one inserts a row and
// the other observes zero rows affected.
func (s *idempotencyStore) Claim(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("idempotency key must not be empty: %w", domain.ErrValidationFailed)
	}

	tag, err := s.pool.Exec(
		ctx,
		`INSERT INTO idempotency_keys (key, created_at) VALUES ($1, NOW())
		 ON CONFLICT (key) DO NOTHING`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("idempotency key %q already used: %w", key, domain.ErrDuplicateRequest)
	}

	return nil
}

func (s *idempotencyStore) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	if _, err := s.pool.Exec(
		ctx,
		`DELETE FROM idempotency_keys WHERE key = $1`,
		key,
	); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}

	return nil
}

func (s *idempotencyStore) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(
		ctx,
		`DELETE FROM idempotency_keys WHERE created_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(retention.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency keys: %w", err)
	}

	return tag.RowsAffected(), nil
}
