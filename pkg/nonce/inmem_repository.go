package nonce

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryRepository implements Repository with a mutex-guarded map
type InMemoryRepository struct {
	mu     sync.Mutex
	nonces map[string]time.Time
}

// NewInMemoryRepository creates a new in-memory nonce repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		nonces: make(map[string]time.Time),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, value string, createdAt time.Time) (*Nonce, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nonces[value]; exists {
		return nil, fmt.Errorf("nonce already exists")
	}
	r.nonces[value] = createdAt
	return &Nonce{Value: value, CreatedAt: createdAt}, nil
}

func (r *InMemoryRepository) Consume(ctx context.Context, value string) (*Nonce, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	createdAt, ok := r.nonces[value]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.nonces, value)
	return &Nonce{Value: value, CreatedAt: createdAt}, nil
}

func (r *InMemoryRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for value, createdAt := range r.nonces {
		if createdAt.Before(cutoff) {
			delete(r.nonces, value)
			removed++
		}
	}
	return removed, nil
}
