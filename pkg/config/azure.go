package config

import (
	"fmt"
	"time"
)

const DefaultLoginHost = "login.microsoftonline.com"

// AzureConfig contains the Azure AD application registration and the
// tuning knobs for talking to the identity provider.
type AzureConfig struct {
	TenantID    string `env:"AZURE_TENANT_ID"`
	ClientID    string `env:"AZURE_CLIENT_ID"`
	LoginHost   string `env:"AZURE_LOGIN_HOST" env-default:"login.microsoftonline.com"`
	RedirectURL string `env:"AZURE_REDIRECT_URL" env-default:"http://localhost:3000/sessions"`

	// DiscoveryURL overrides the openid-configuration location derived from LoginHost and TenantID.
	DiscoveryURL string `env:"AZURE_DISCOVERY_URL"`

	CacheTTL     time.Duration `env:"AZURE_METADATA_CACHE_TTL" env-default:"24h"`
	CacheGrace   time.Duration `env:"AZURE_METADATA_CACHE_GRACE" env-default:"10s"`
	FetchTimeout time.Duration `env:"AZURE_FETCH_TIMEOUT" env-default:"10s"`

	NonceTTL           time.Duration `env:"AZURE_NONCE_TTL" env-default:"5m"`
	NoncePurgeInterval time.Duration `env:"AZURE_NONCE_PURGE_INTERVAL" env-default:"10m"`
	StateTTL           time.Duration `env:"AZURE_STATE_TTL" env-default:"5m"`

	// CheckReferer enables the callback referer check against https://<LoginHost>/.
	CheckReferer bool `env:"AZURE_CHECK_REFERER" env-default:"true"`
}

// OpenIDConfigurationURL returns the discovery document location for the tenant
func (c AzureConfig) OpenIDConfigurationURL() string {
	if c.DiscoveryURL != "" {
		return c.DiscoveryURL
	}
	return fmt.Sprintf("https://%s/%s/v2.0/.well-known/openid-configuration", c.loginHost(), c.TenantID)
}

// ExpectedReferer returns the referer the callback must carry, or "" when the check is disabled
func (c AzureConfig) ExpectedReferer() string {
	if !c.CheckReferer {
		return ""
	}
	return "https://" + c.loginHost() + "/"
}

func (c AzureConfig) loginHost() string {
	if c.LoginHost == "" {
		return DefaultLoginHost
	}
	return c.LoginHost
}
