package openid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/tendant/azure-login/pkg/errors"
	"github.com/tendant/azure-login/pkg/metrics"
)

const (
	MetadataCacheKey    = "azure_openid_metadata"
	SigningKeysCacheKey = "azure_jwks_metadata"

	DefaultCacheTTL     = 24 * time.Hour
	DefaultCacheGrace   = 10 * time.Second
	DefaultFetchTimeout = 10 * time.Second

	maxDocumentSize = 1 << 20
)

// Provider fetches the identity provider's discovery document and key set.
type Provider struct {
	discoveryURL string
	client       *http.Client
	timeout      time.Duration
	ttl          time.Duration
	grace        time.Duration
	now          func() time.Time

	metadata *Cache[*Metadata]
	keys     *Cache[*KeySet]
}

// Option configures a Provider
type Option func(*Provider)

// WithHTTPClient replaces the pooled default client
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// WithFetchTimeout bounds every upstream request
func WithFetchTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithCachePolicy sets the cache TTL and the stale grace window
func WithCachePolicy(ttl, grace time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.ttl = ttl
		}
		if grace >= 0 {
			p.grace = grace
		}
	}
}

// WithClock sets the time source used by the caches
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider creates a Provider reading the configuration document at discoveryURL
func NewProvider(discoveryURL string, opts ...Option) *Provider {
	p := &Provider{
		discoveryURL: discoveryURL,
		client:       cleanhttp.DefaultPooledClient(),
		timeout:      DefaultFetchTimeout,
		ttl:          DefaultCacheTTL,
		grace:        DefaultCacheGrace,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.metadata = NewCache[*Metadata](p.ttl, p.grace, p.now)
	p.keys = NewCache[*KeySet](p.ttl, p.grace, p.now)
	return p
}

// Metadata returns the cached OpenID configuration, fetching it when needed.
// Failures carry ErrCodeMetadataFetch.
func (p *Provider) Metadata(ctx context.Context) (*Metadata, error) {
	return p.metadata.Fetch(ctx, MetadataCacheKey, func(ctx context.Context) (*Metadata, error) {
		var md Metadata
		err := p.getJSON(ctx, p.discoveryURL, &md)
		if err == nil {
			err = md.validate()
		}
		metrics.ObserveFetch(metrics.DocumentOpenIDConfiguration, err)
		if err != nil {
			slog.Error("Failed fetching openid configuration", "url", p.discoveryURL, "err", err)
			return nil, errors.Wrap(err, errors.ErrCodeMetadataFetch, "failed to fetch openid configuration")
		}
		slog.Info("Fetched openid configuration", "issuer", md.Issuer)
		return &md, nil
	})
}

// SigningKeys returns the cached signing keys published at md.JwksURI.
// Failures carry ErrCodeSigningKeysFetch.
func (p *Provider) SigningKeys(ctx context.Context, md *Metadata) (*KeySet, error) {
	if md == nil || md.JwksURI == "" {
		return nil, errors.New(errors.ErrCodeSigningKeysFetch, "metadata has no jwks_uri")
	}
	return p.keys.Fetch(ctx, SigningKeysCacheKey, func(ctx context.Context) (*KeySet, error) {
		var set *KeySet
		doc, err := p.get(ctx, md.JwksURI)
		if err == nil {
			set, err = ParseKeySet(doc)
		}
		metrics.ObserveFetch(metrics.DocumentJWKS, err)
		if err != nil {
			slog.Error("Failed fetching signing keys", "url", md.JwksURI, "err", err)
			return nil, errors.Wrap(err, errors.ErrCodeSigningKeysFetch, "failed to fetch signing keys")
		}
		slog.Info("Fetched signing keys", "count", set.Len())
		return set, nil
	})
}

func (p *Provider) getJSON(ctx context.Context, url string, v interface{}) error {
	body, err := p.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// get reads at most maxDocumentSize bytes of a 2xx response.
func (p *Provider) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
