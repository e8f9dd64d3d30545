package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository on the users table
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL user repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

const userColumns = `id, azure_id, email, full_name, roles, created_at, updated_at`

func (r *PostgresRepository) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE azure_id = $1`
	return r.queryOne(ctx, query, externalID)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// Save upserts on azure_id. Email, full name and roles are replaced wholesale.
func (r *PostgresRepository) Save(ctx context.Context, u *User) (*User, error) {
	id := u.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}

	query := `
		INSERT INTO users (id, azure_id, email, full_name, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (azure_id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			roles = EXCLUDED.roles,
			updated_at = NOW()
		RETURNING ` + userColumns

	saved, err := r.queryOne(ctx, query, id, u.ExternalID, u.Email, u.FullName, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return saved, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*User, error) {
	u := &User{}
	var email, fullName *string

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.ExternalID,
		&email,
		&fullName,
		&u.Roles,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if email != nil {
		u.Email = *email
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}
	return u, nil
}
