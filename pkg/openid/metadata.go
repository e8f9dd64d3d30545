package openid

import "fmt"

// Metadata is the subset of the OpenID Provider configuration document
// (OpenID Connect Discovery 1.0, section 3) used by the login flow.
type Metadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JwksURI               string `json:"jwks_uri"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`

	ResponseModesSupported           []string `json:"response_modes_supported,omitempty"`
	ResponseTypesSupported           []string `json:"response_types_supported,omitempty"`
	ScopesSupported                  []string `json:"scopes_supported,omitempty"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported,omitempty"`
	ClaimsSupported                  []string `json:"claims_supported,omitempty"`
}

func (m *Metadata) validate() error {
	switch {
	case m.Issuer == "":
		return fmt.Errorf("metadata has no issuer")
	case m.AuthorizationEndpoint == "":
		return fmt.Errorf("metadata has no authorization_endpoint")
	case m.JwksURI == "":
		return fmt.Errorf("metadata has no jwks_uri")
	}
	return nil
}
