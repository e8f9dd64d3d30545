package config

import "time"

// RateLimitConfig limits how often one client IP may start a login or post a callback
type RateLimitConfig struct {
	Enabled   bool          `env:"LOGIN_RATE_LIMIT_ENABLED" env-default:"true"`
	Burst     int           `env:"LOGIN_RATE_LIMIT_BURST" env-default:"10"`
	PerMinute int           `env:"LOGIN_RATE_LIMIT_PER_MINUTE" env-default:"10"`
	BucketTTL time.Duration `env:"LOGIN_RATE_LIMIT_BUCKET_TTL" env-default:"1h"`

	TrustForwardedFor bool `env:"LOGIN_RATE_LIMIT_TRUST_FORWARDED_FOR" env-default:"false"`
}

// RefillRate returns the tokens added per second
func (c RateLimitConfig) RefillRate() float64 {
	return float64(c.PerMinute) / 60.0
}
