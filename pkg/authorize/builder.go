// Package authorize builds the redirect that starts an implicit ID token login.
package authorize

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/azure-login/pkg/errors"
	"github.com/tendant/azure-login/pkg/openid"
)

const (
	ResponseModeFormPost = "form_post"
	ResponseTypeIDToken  = "id_token"
	Scope                = "openid profile email"

	DefaultStateTTL = 5 * time.Minute
)

// AuthorizationRequest is a ready-to-follow authorization redirect
type AuthorizationRequest struct {
	URL            string
	State          string
	Nonce          string
	StateExpiresAt time.Time
}

// MetadataSource supplies the provider's authorization endpoint
type MetadataSource interface {
	Metadata(ctx context.Context) (*openid.Metadata, error)
}

// NonceIssuer creates single-use nonces
type NonceIssuer interface {
	Issue(ctx context.Context) (string, error)
}

// RequestBuilder assembles authorization requests for one client registration
type RequestBuilder struct {
	metadata    MetadataSource
	nonces      NonceIssuer
	clientID    string
	redirectURL string
	stateTTL    time.Duration
	now         func() time.Time
}

// Option configures a RequestBuilder
type Option func(*RequestBuilder)

// WithStateTTL sets how long the state cookie lives
func WithStateTTL(ttl time.Duration) Option {
	return func(b *RequestBuilder) {
		if ttl > 0 {
			b.stateTTL = ttl
		}
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(b *RequestBuilder) {
		b.now = now
	}
}

// NewRequestBuilder creates a RequestBuilder
func NewRequestBuilder(metadata MetadataSource, nonces NonceIssuer, clientID, redirectURL string, opts ...Option) *RequestBuilder {
	b := &RequestBuilder{
		metadata:    metadata,
		nonces:      nonces,
		clientID:    clientID,
		redirectURL: redirectURL,
		stateTTL:    DefaultStateTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build issues a fresh nonce and state and returns the authorization URL.
// Failures carry ErrCodeAuthorizationURLUnavailable.
func (b *RequestBuilder) Build(ctx context.Context) (*AuthorizationRequest, error) {
	md, err := b.metadata.Metadata(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAuthorizationURLUnavailable, "unable to get authorization url")
	}

	endpoint, err := url.Parse(md.AuthorizationEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAuthorizationURLUnavailable, "invalid authorization endpoint")
	}

	nonce, err := b.nonces.Issue(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAuthorizationURLUnavailable, "unable to issue nonce")
	}
	state := uuid.NewString()

	query := endpoint.Query()
	query.Set("client_id", b.clientID)
	query.Set("redirect_uri", b.redirectURL)
	query.Set("response_mode", ResponseModeFormPost)
	query.Set("response_type", ResponseTypeIDToken)
	query.Set("scope", Scope)
	query.Set("state", state)
	query.Set("nonce", nonce)
	endpoint.RawQuery = query.Encode()

	return &AuthorizationRequest{
		URL:            endpoint.String(),
		State:          state,
		Nonce:          nonce,
		StateExpiresAt: b.now().Add(b.stateTTL),
	}, nil
}
