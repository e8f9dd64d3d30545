package config

import "time"

// SessionConfig contains the signed session cookie settings
type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET"`
	Duration     time.Duration `env:"SESSION_DURATION" env-default:"8h"`
	CookieName   string        `env:"SESSION_COOKIE_NAME" env-default:"azure_login_session"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" env-default:"true"`
}
