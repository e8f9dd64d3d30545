// Package openidtest runs an in-process identity provider for tests.
package openidtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/tendant/azure-login/pkg/openid"
)

const (
	DiscoveryPath = "/tenant/v2.0/.well-known/openid-configuration"
	JWKSPath      = "/tenant/discovery/v2.0/keys"
	DefaultKID    = "test-key-1"
)

// Server serves a discovery document and a key set signed tokens can be verified against.
type Server struct {
	*httptest.Server

	Key    *rsa.PrivateKey
	KID    string
	Issuer string

	mu             sync.Mutex
	discoveryFails bool
	jwksFails      bool

	DiscoveryHits atomic.Int32
	JWKSHits      atomic.Int32
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	s := &Server{Key: key, KID: DefaultKID}

	mux := http.NewServeMux()
	mux.HandleFunc(DiscoveryPath, func(w http.ResponseWriter, r *http.Request) {
		s.DiscoveryHits.Add(1)
		if s.failing(true) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, openid.Metadata{
			Issuer:                           s.Issuer,
			AuthorizationEndpoint:            s.URL + "/tenant/oauth2/v2.0/authorize",
			TokenEndpoint:                    s.URL + "/tenant/oauth2/v2.0/token",
			JwksURI:                          s.URL + JWKSPath,
			ResponseModesSupported:           []string{"query", "fragment", "form_post"},
			IDTokenSigningAlgValuesSupported: []string{"RS256"},
		})
	})
	mux.HandleFunc(JWKSPath, func(w http.ResponseWriter, r *http.Request) {
		s.JWKSHits.Add(1)
		if s.failing(false) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		set, err := PublicKeySet(s.KID, &s.Key.PublicKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, set)
	})

	s.Server = httptest.NewServer(mux)
	s.Issuer = s.URL + "/tenant/v2.0"
	t.Cleanup(s.Close)
	return s
}

// DiscoveryURL returns the configuration document location.
func (s *Server) DiscoveryURL() string {
	return s.URL + DiscoveryPath
}

// FailDiscovery makes the discovery endpoint answer 503.
func (s *Server) FailDiscovery(fail bool) {
	s.mu.Lock()
	s.discoveryFails = fail
	s.mu.Unlock()
}

// FailJWKS makes the key set endpoint answer 503.
func (s *Server) FailJWKS(fail bool) {
	s.mu.Lock()
	s.jwksFails = fail
	s.mu.Unlock()
}

func (s *Server) failing(discovery bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if discovery {
		return s.discoveryFails
	}
	return s.jwksFails
}

// Claims returns a valid claim set for audience and nonce issued now.
func (s *Server) Claims(audience, nonce string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   s.Issuer,
		"aud":   audience,
		"sub":   "subject-1",
		"oid":   "00000000-0000-0000-0000-000000000001",
		"email": "ada@example.com",
		"name":  "Ada Lovelace",
		"roles": []string{"Reader"},
		"nonce": nonce,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

// Sign signs claims with the server key under the server kid.
func (s *Server) Sign(t testing.TB, claims jwt.Claims) string {
	t.Helper()
	return s.SignWithKID(t, claims, s.KID)
}

// SignWithKID signs claims with the server key and the given kid header.
// An empty kid omits the header.
func (s *Server) SignWithKID(t testing.TB, claims jwt.Claims, kid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	raw, err := token.SignedString(s.Key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

// PublicKeySet returns a JWKS holding pub as an RS256 signing key under kid.
func PublicKeySet(kid string, pub *rsa.PublicKey) (jwk.Set, error) {
	key, err := jwk.FromRaw(pub)
	if err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, err
	}
	return set, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
