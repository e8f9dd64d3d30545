package nonce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/tendant/azure-login/pkg/errors"
	"github.com/tendant/azure-login/pkg/metrics"
)

const DefaultTTL = 5 * time.Minute

// Reasons attached to INVALID_NONCE errors
const (
	ReasonMissing  = "missing"
	ReasonNotFound = "not_found"
	ReasonExpired  = "expired"
)

// Service issues and redeems single-use login nonces
type Service struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithTTL sets how long an issued nonce stays redeemable
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a nonce service backed by repo
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		ttl:  DefaultTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates and stores a fresh random nonce
func (s *Service) Issue(ctx context.Context) (string, error) {
	value := uuid.NewString()
	if _, err := s.repo.Create(ctx, value, s.now()); err != nil {
		return "", fmt.Errorf("failed to issue nonce: %w", err)
	}
	return value, nil
}

// Consume removes the nonce and returns when it was issued.
// Returns ErrNotFound when it was never issued or already consumed.
func (s *Service) Consume(ctx context.Context, value string) (time.Time, error) {
	n, err := s.repo.Consume(ctx, value)
	if err != nil {
		return time.Time{}, err
	}
	return n.CreatedAt, nil
}

// IsFresh reports whether a nonce issued at createdAt is still inside the window
func (s *Service) IsFresh(createdAt time.Time) bool {
	return s.now().Before(createdAt.Add(s.ttl))
}

// Redeem consumes value and checks its freshness. The nonce is deleted even
// when it turns out to be expired. Failures are INVALID_NONCE errors with a
// "reason" detail.
func (s *Service) Redeem(ctx context.Context, value string) error {
	if value == "" {
		return apperrors.InvalidNonce(ReasonMissing)
	}

	createdAt, err := s.Consume(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.InvalidNonce(ReasonNotFound)
		}
		return apperrors.InternalWrap(err, "failed to consume nonce")
	}

	if !s.IsFresh(createdAt) {
		return apperrors.InvalidNonce(ReasonExpired).WithDetail("issued_at", createdAt)
	}
	return nil
}

// PurgeExpired deletes nonces that can no longer be redeemed
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteCreatedBefore(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	metrics.ObserveNoncePurge(removed)
	return removed, nil
}

// RunPurger calls PurgeExpired every interval until ctx is done
func (s *Service) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.PurgeExpired(ctx)
			if err != nil {
				slog.Error("Failed purging expired nonces", "err", err)
				continue
			}
			if removed > 0 {
				slog.Info("Purged expired nonces", "count", removed)
			}
		}
	}
}
