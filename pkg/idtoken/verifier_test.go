package idtoken_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/azure-login/pkg/errors"
	"github.com/tendant/azure-login/pkg/idtoken"
	"github.com/tendant/azure-login/pkg/nonce"
	"github.com/tendant/azure-login/pkg/openid"
	"github.com/tendant/azure-login/pkg/openid/openidtest"
)

const clientID = "client-123"

type fixture struct {
	idp      *openidtest.Server
	nonces   *nonce.Service
	verifier *idtoken.Verifier
}

func newFixture(t *testing.T, nonceOpts ...nonce.Option) *fixture {
	t.Helper()
	idp := openidtest.NewServer(t)
	nonces := nonce.NewService(nonce.NewInMemoryRepository(), nonceOpts...)
	provider := openid.NewProvider(idp.DiscoveryURL())
	return &fixture{
		idp:      idp,
		nonces:   nonces,
		verifier: idtoken.NewVerifier(provider, nonces, clientID),
	}
}

func (f *fixture) issueNonce(t *testing.T) string {
	t.Helper()
	value, err := f.nonces.Issue(context.Background())
	require.NoError(t, err)
	return value
}

// nonceStillRedeemable consumes value to prove an earlier rejection left it untouched.
func (f *fixture) nonceStillRedeemable(t *testing.T, value string) {
	t.Helper()
	_, err := f.nonces.Consume(context.Background(), value)
	assert.NoError(t, err, "nonce must not be consumed by a rejected token")
}

func assertCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, errors.From(err).Code, "unexpected error: %v", err)
}

func TestVerifySuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.issueNonce(t)

	claims, err := f.verifier.Verify(ctx, f.idp.Sign(t, f.idp.Claims(clientID, n)))
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", claims["oid"])
	assert.Equal(t, "ada@example.com", claims["email"])
	assert.Equal(t, n, claims["nonce"])

	t.Run("replay is rejected", func(t *testing.T) {
		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, f.idp.Claims(clientID, n)))
		assertCode(t, err, errors.ErrCodeInvalidNonce)
		assert.Equal(t, nonce.ReasonNotFound, errors.GetDetails(err)["reason"])
	})
}

func TestVerifyKeyErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("missing kid", func(t *testing.T) {
		n := f.issueNonce(t)
		_, err := f.verifier.Verify(ctx, f.idp.SignWithKID(t, f.idp.Claims(clientID, n), ""))
		assertCode(t, err, errors.ErrCodeTokenDecode)
		assert.Contains(t, err.Error(), "missing key id")
		f.nonceStillRedeemable(t, n)
	})

	t.Run("unknown kid", func(t *testing.T) {
		n := f.issueNonce(t)
		_, err := f.verifier.Verify(ctx, f.idp.SignWithKID(t, f.idp.Claims(clientID, n), "rotated-away"))
		assertCode(t, err, errors.ErrCodeTokenDecode)
		assert.Contains(t, err.Error(), "unknown key id")
		f.nonceStillRedeemable(t, n)
	})

	t.Run("signed by another key", func(t *testing.T) {
		n := f.issueNonce(t)
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, f.idp.Claims(clientID, n))
		token.Header["kid"] = f.idp.KID
		raw, err := token.SignedString(other)
		require.NoError(t, err)

		_, err = f.verifier.Verify(ctx, raw)
		assertCode(t, err, errors.ErrCodeTokenDecode)
		f.nonceStillRedeemable(t, n)
	})

	t.Run("non RS256 algorithm", func(t *testing.T) {
		n := f.issueNonce(t)
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, f.idp.Claims(clientID, n))
		token.Header["kid"] = f.idp.KID
		raw, err := token.SignedString([]byte("shared-secret"))
		require.NoError(t, err)

		_, err = f.verifier.Verify(ctx, raw)
		assertCode(t, err, errors.ErrCodeTokenDecode)
		f.nonceStillRedeemable(t, n)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := f.verifier.Verify(ctx, "not.a.jwt")
		assertCode(t, err, errors.ErrCodeTokenDecode)
	})
}

func TestVerifyTimingClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name  string
		tweak func(jwt.MapClaims)
		code  errors.ErrorCode
	}{
		{"expired", func(c jwt.MapClaims) { c["exp"] = now.Add(-5 * time.Minute).Unix() }, errors.ErrCodeTokenExpired},
		{"missing exp", func(c jwt.MapClaims) { delete(c, "exp") }, errors.ErrCodeTokenDecode},
		{"not yet valid", func(c jwt.MapClaims) { c["nbf"] = now.Add(5 * time.Minute).Unix() }, errors.ErrCodeTokenNotYetValid},
		{"issued in future", func(c jwt.MapClaims) { c["iat"] = now.Add(5 * time.Minute).Unix() }, errors.ErrCodeTokenIssuedInFuture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := f.issueNonce(t)
			claims := f.idp.Claims(clientID, n)
			tt.tweak(claims)

			_, err := f.verifier.Verify(ctx, f.idp.Sign(t, claims))
			assertCode(t, err, tt.code)
			f.nonceStillRedeemable(t, n)
		})
	}

	t.Run("skew inside leeway is accepted", func(t *testing.T) {
		n := f.issueNonce(t)
		claims := f.idp.Claims(clientID, n)
		claims["iat"] = now.Add(30 * time.Second).Unix()
		claims["nbf"] = now.Add(30 * time.Second).Unix()

		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, claims))
		assert.NoError(t, err)
	})
}

func TestVerifyIssuerAndAudience(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("wrong issuer", func(t *testing.T) {
		n := f.issueNonce(t)
		claims := f.idp.Claims(clientID, n)
		claims["iss"] = "https://evil.example.com/tenant/v2.0"

		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, claims))
		assertCode(t, err, errors.ErrCodeInvalidIssuer)
		f.nonceStillRedeemable(t, n)
	})

	t.Run("issuer with trailing slash", func(t *testing.T) {
		n := f.issueNonce(t)
		claims := f.idp.Claims(clientID, n)
		claims["iss"] = f.idp.Issuer + "/"

		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, claims))
		assertCode(t, err, errors.ErrCodeInvalidIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		n := f.issueNonce(t)
		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, f.idp.Claims("someone-else", n)))
		assertCode(t, err, errors.ErrCodeInvalidAudience)
		f.nonceStillRedeemable(t, n)
	})

	t.Run("audience list with extra entry", func(t *testing.T) {
		n := f.issueNonce(t)
		claims := f.idp.Claims(clientID, n)
		claims["aud"] = []string{clientID, "someone-else"}

		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, claims))
		assertCode(t, err, errors.ErrCodeInvalidAudience)
	})

	t.Run("single element audience list", func(t *testing.T) {
		n := f.issueNonce(t)
		claims := f.idp.Claims(clientID, n)
		claims["aud"] = []string{clientID}

		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, claims))
		assert.NoError(t, err)
	})
}

func TestVerifyNonce(t *testing.T) {
	ctx := context.Background()

	t.Run("missing nonce claim", func(t *testing.T) {
		f := newFixture(t)
		claims := f.idp.Claims(clientID, "")
		delete(claims, "nonce")

		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, claims))
		assertCode(t, err, errors.ErrCodeInvalidNonce)
		assert.Equal(t, nonce.ReasonMissing, errors.GetDetails(err)["reason"])
	})

	t.Run("never issued", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, f.idp.Claims(clientID, "made-up")))
		assertCode(t, err, errors.ErrCodeInvalidNonce)
		assert.Equal(t, nonce.ReasonNotFound, errors.GetDetails(err)["reason"])
	})

	t.Run("expired nonce", func(t *testing.T) {
		issuedAt := time.Now().Add(-10 * time.Minute)
		clock := issuedAt
		f := newFixture(t, nonce.WithClock(func() time.Time { return clock }))
		n := f.issueNonce(t)
		clock = time.Now()

		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, f.idp.Claims(clientID, n)))
		assertCode(t, err, errors.ErrCodeInvalidNonce)
		assert.Equal(t, nonce.ReasonExpired, errors.GetDetails(err)["reason"])

		_, err = f.nonces.Consume(ctx, n)
		assert.ErrorIs(t, err, nonce.ErrNotFound, "expired nonce is deleted on lookup")
	})
}

func TestVerifyProviderFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("metadata unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.idp.FailDiscovery(true)
		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, f.idp.Claims(clientID, f.issueNonce(t))))
		assertCode(t, err, errors.ErrCodeMetadataFetch)
	})

	t.Run("signing keys unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.idp.FailJWKS(true)
		_, err := f.verifier.Verify(ctx, f.idp.Sign(t, f.idp.Claims(clientID, f.issueNonce(t))))
		assertCode(t, err, errors.ErrCodeSigningKeysFetch)
	})
}
