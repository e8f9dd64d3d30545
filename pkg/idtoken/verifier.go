// Package idtoken verifies Azure AD ID tokens received on the login callback.
package idtoken

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tendant/azure-login/pkg/errors"
	"github.com/tendant/azure-login/pkg/openid"
)

const DefaultLeeway = 60 * time.Second

var (
	errMissingKeyID = stderrors.New("missing key id")
	errUnknownKeyID = stderrors.New("unknown key id")
)

// KeyProvider supplies the cached provider metadata and signing keys
type KeyProvider interface {
	Metadata(ctx context.Context) (*openid.Metadata, error)
	SigningKeys(ctx context.Context, md *openid.Metadata) (*openid.KeySet, error)
}

// NonceRedeemer consumes the nonce bound to a token
type NonceRedeemer interface {
	Redeem(ctx context.Context, value string) error
}

// Verifier checks signature, timing, issuer, audience and nonce of ID tokens
type Verifier struct {
	provider KeyProvider
	nonces   NonceRedeemer
	clientID string
	leeway   time.Duration
	now      func() time.Time
}

// Option configures a Verifier
type Option func(*Verifier)

// WithLeeway sets the clock skew tolerated on exp, nbf and iat
func WithLeeway(leeway time.Duration) Option {
	return func(v *Verifier) {
		if leeway >= 0 {
			v.leeway = leeway
		}
	}
}

// WithClock sets the time source for timing claims
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a Verifier accepting tokens issued for clientID
func NewVerifier(provider KeyProvider, nonces NonceRedeemer, clientID string, opts ...Option) *Verifier {
	v := &Verifier{
		provider: provider,
		nonces:   nonces,
		clientID: clientID,
		leeway:   DefaultLeeway,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates rawIDToken and returns its claims.
//
// The nonce is consumed only after every other check has passed, so a token
// rejected for any earlier reason leaves it redeemable.
func (v *Verifier) Verify(ctx context.Context, rawIDToken string) (map[string]interface{}, error) {
	md, err := v.provider.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := v.provider.SigningKeys(ctx, md)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)

	claims := jwt.MapClaims{}
	_, err = parser.ParseWithClaims(rawIDToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errMissingKeyID
		}
		key, ok := keys.Key(kid)
		if !ok {
			return nil, errUnknownKeyID
		}
		return key, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	if iss, _ := claims["iss"].(string); iss != md.Issuer {
		return nil, errors.New(errors.ErrCodeInvalidIssuer, "token issuer does not match provider metadata").
			WithDetail("issuer", claims["iss"])
	}

	aud, err := claims.GetAudience()
	if err != nil || len(aud) != 1 || aud[0] != v.clientID {
		return nil, errors.New(errors.ErrCodeInvalidAudience, "token audience does not match client id").
			WithDetail("audience", claims["aud"])
	}

	nonce, _ := claims["nonce"].(string)
	if err := v.nonces.Redeem(ctx, nonce); err != nil {
		return nil, err
	}

	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case stderrors.Is(err, errMissingKeyID):
		return errors.TokenDecode("missing key id", err)
	case stderrors.Is(err, errUnknownKeyID):
		return errors.TokenDecode("unknown key id", err)
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return errors.TokenDecode("malformed token", err)
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
		return errors.TokenDecode("signature verification failed", err)
	case stderrors.Is(err, jwt.ErrTokenUnverifiable):
		return errors.TokenDecode("unverifiable token", err)
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return errors.Wrap(err, errors.ErrCodeTokenExpired, "token has expired")
	case stderrors.Is(err, jwt.ErrTokenNotValidYet):
		return errors.Wrap(err, errors.ErrCodeTokenNotYetValid, "token is not valid yet")
	case stderrors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return errors.Wrap(err, errors.ErrCodeTokenIssuedInFuture, "token was issued in the future")
	default:
		return errors.TokenDecode("invalid token", err)
	}
}
