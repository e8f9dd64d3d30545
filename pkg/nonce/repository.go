package nonce

import (
	"context"
	"time"
)

// Repository defines the interface for nonce storage
type Repository interface {
	// Create stores a new nonce
	Create(ctx context.Context, value string, createdAt time.Time) (*Nonce, error)

	// Consume atomically deletes the nonce and returns it. Returns ErrNotFound
	// if it does not exist, so at most one caller ever sees a given nonce.
	Consume(ctx context.Context, value string) (*Nonce, error)

	// DeleteCreatedBefore removes nonces older than cutoff and returns how many were removed
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
