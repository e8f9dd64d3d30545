package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for user data access
type Repository interface {
	// FindByExternalID returns the user linked to an Azure AD object id
	FindByExternalID(ctx context.Context, externalID string) (*User, error)

	// FindByID returns a user by local id
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Save inserts the user or overwrites the record with the same external id
	Save(ctx context.Context, u *User) (*User, error)
}
