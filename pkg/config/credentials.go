package config

// RequireSettings checks the settings the service cannot start without.
// The returned error lists every missing or invalid key.
func RequireSettings(azure AzureConfig, session SessionConfig) error {
	return Validate(
		func() ValidationErrors {
			return CollectErrors(
				RequireNonEmpty("SESSION_SECRET", session.Secret),
				RequireNonEmpty("AZURE_TENANT_ID", azure.TenantID),
				RequireNonEmpty("AZURE_CLIENT_ID", azure.ClientID),
			)
		},
		func() ValidationErrors {
			return CollectErrors(
				RequireValidURL("AZURE_REDIRECT_URL", azure.RedirectURL),
				WhenSet(azure.DiscoveryURL, func() *ValidationError {
					return RequireValidURL("AZURE_DISCOVERY_URL", azure.DiscoveryURL)
				}),
				RequirePositiveDuration("AZURE_METADATA_CACHE_TTL", azure.CacheTTL),
				RequirePositiveDuration("AZURE_FETCH_TIMEOUT", azure.FetchTimeout),
				RequirePositiveDuration("AZURE_NONCE_TTL", azure.NonceTTL),
				RequirePositiveDuration("SESSION_DURATION", session.Duration),
			)
		},
	)
}
