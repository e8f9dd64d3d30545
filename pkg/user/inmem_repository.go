package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository with maps guarded by a RWMutex
type InMemoryRepository struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*User
	byExternal map[string]uuid.UUID
}

// NewInMemoryRepository creates a new in-memory user repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:       make(map[uuid.UUID]*User),
		byExternal: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryRepository) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byExternal[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.byID[id].clone(), nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.clone(), nil
}

func (r *InMemoryRepository) Save(ctx context.Context, u *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored := u.clone()

	if id, ok := r.byExternal[u.ExternalID]; ok {
		existing := r.byID[id]
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.byID[stored.ID] = stored
	r.byExternal[stored.ExternalID] = stored.ID
	return stored.clone(), nil
}
