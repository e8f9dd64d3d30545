package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository on the azure_login_nonces table
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL nonce repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

func (r *PostgresRepository) Create(ctx context.Context, value string, createdAt time.Time) (*Nonce, error) {
	query := `
		INSERT INTO azure_login_nonces (nonce_value, created_at, updated_at)
		VALUES ($1, $2, $2)
		RETURNING nonce_value, created_at
	`

	n := &Nonce{}
	err := r.pool.QueryRow(ctx, query, value, createdAt).Scan(&n.Value, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create nonce: %w", err)
	}
	return n, nil
}

// Consume deletes and returns the nonce in one statement, so two concurrent
// callbacks carrying the same nonce cannot both succeed.
func (r *PostgresRepository) Consume(ctx context.Context, value string) (*Nonce, error) {
	query := `
		DELETE FROM azure_login_nonces
		WHERE nonce_value = $1
		RETURNING nonce_value, created_at
	`

	n := &Nonce{}
	err := r.pool.QueryRow(ctx, query, value).Scan(&n.Value, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM azure_login_nonces WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired nonces: %w", err)
	}
	return tag.RowsAffected(), nil
}
