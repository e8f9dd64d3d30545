package user

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/tendant/azure-login/pkg/errors"
)

// Resolver finds or creates the local user for a verified identity
type Resolver struct {
	repo Repository
}

// NewResolver creates a Resolver backed by repo
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the user linked to claims.ObjectID, creating it on first
// login. Email, full name and roles are overwritten from the token every time.
func (r *Resolver) Resolve(ctx context.Context, claims TokenClaims) (*User, error) {
	existing, err := r.repo.FindByExternalID(ctx, claims.ObjectID)
	switch {
	case err == nil:
	case stderrors.Is(err, ErrNotFound):
		existing = &User{ExternalID: claims.ObjectID}
	default:
		return nil, errors.InternalWrap(err, "failed to look up user")
	}

	existing.Email = claims.Email
	existing.FullName = claims.Name
	existing.Roles = append([]string{}, claims.Roles...)

	saved, err := r.repo.Save(ctx, existing)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to save user")
	}

	slog.Info("Resolved user from id token", "user_id", saved.ID, "azure_id", saved.ExternalID, "roles", len(saved.Roles))
	return saved, nil
}

