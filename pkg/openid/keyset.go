package openid

import (
	"crypto/rsa"
	"fmt"
	"log/slog"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeySet maps key ids to RSA verification keys. It is immutable once built.
type KeySet struct {
	keys map[string]*rsa.PublicKey
}

// ParseKeySet builds a KeySet from a JWKS document. Keys that fail to parse,
// keys without a kid and keys that are not RSA signing keys are skipped.
func ParseKeySet(doc []byte) (*KeySet, error) {
	set, err := jwk.Parse(doc, jwk.WithIgnoreParseError(true))
	if err != nil {
		return nil, fmt.Errorf("parse key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, set.Len())
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		kid := key.KeyID()
		if kid == "" || key.KeyType() != jwa.RSA {
			continue
		}
		if use := key.KeyUsage(); use != "" && use != string(jwk.ForSignature) {
			continue
		}
		var pub rsa.PublicKey
		if err := key.Raw(&pub); err != nil {
			slog.Warn("Skipping unusable signing key", "kid", kid, "err", err)
			continue
		}
		keys[kid] = &pub
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("key set has no usable RSA signing keys")
	}
	return &KeySet{keys: keys}, nil
}

// Key returns the verification key for kid.
func (s *KeySet) Key(kid string) (*rsa.PublicKey, bool) {
	key, ok := s.keys[kid]
	return key, ok
}

// Len returns the number of usable keys.
func (s *KeySet) Len() int {
	return len(s.keys)
}
