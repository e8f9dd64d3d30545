package user

import (
	"strings"

	"github.com/tendant/azure-login/pkg/errors"
)

// Claim names read from verified Azure AD ID tokens
const (
	ClaimObjectID = "oid"
	ClaimEmail    = "email"
	ClaimName     = "name"
	ClaimRoles    = "roles"
)

// TokenClaims is the typed projection of a verified ID token
type TokenClaims struct {
	ObjectID string
	Email    string
	Name     string
	Roles    []string
}

// ParseTokenClaims projects verified claims into TokenClaims.
// oid, email and name are required in that order; a blank value counts as
// missing. roles defaults to an empty list.
func ParseTokenClaims(claims map[string]interface{}) (TokenClaims, error) {
	var tc TokenClaims

	for _, field := range []struct {
		name string
		dst  *string
	}{
		{ClaimObjectID, &tc.ObjectID},
		{ClaimEmail, &tc.Email},
		{ClaimName, &tc.Name},
	} {
		value, _ := claims[field.name].(string)
		if strings.TrimSpace(value) == "" {
			return TokenClaims{}, errors.MissingRequiredClaim(field.name)
		}
		*field.dst = value
	}

	tc.Roles = parseRoles(claims[ClaimRoles])
	return tc, nil
}

func parseRoles(raw interface{}) []string {
	roles := []string{}
	switch v := raw.(type) {
	case string:
		if v != "" {
			roles = append(roles, v)
		}
	case []string:
		roles = append(roles, v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
	}
	return roles
}
