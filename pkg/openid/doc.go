// Package openid retrieves and caches the identity provider's OpenID
// configuration and signing keys.
//
// Both documents are held in a Cache with a long TTL. Concurrent misses for
// the same document collapse into a single upstream request, and readers
// holding an entry that expired within the grace window keep using it while a
// refresh is in flight.
//
//	provider := openid.NewProvider(cfg.OpenIDConfigurationURL(),
//		openid.WithFetchTimeout(10*time.Second),
//	)
//	md, err := provider.Metadata(ctx)
//	keys, err := provider.SigningKeys(ctx, md)
package openid
