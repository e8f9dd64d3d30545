package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/tendant/azure-login/pkg/user"
)

const (
	DefaultCookieName = "azure_login_session"
	DefaultDuration   = 8 * time.Hour

	ClaimUserID    = "user_id"
	ClaimExpiresAt = "expires_at"

	MessageSignInRequired = "Please sign in before continuing."
)

type contextKey string

const (
	userContextKey    contextKey = "azure_login_user"
	sessionContextKey contextKey = "azure_login_session"
)

// Session is the state kept in the signed session cookie
type Session struct {
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager issues and checks HS256-signed session cookies
type Manager struct {
	tokenAuth  *jwtauth.JWTAuth
	cookies    CookieSetter
	flash      *Flash
	cookieName string
	duration   time.Duration
	loginPath  string
	now        func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithCookieName sets the session cookie name
func WithCookieName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.cookieName = name
		}
	}
}

// WithDuration sets the absolute session lifetime
func WithDuration(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.duration = d
		}
	}
}

// WithLoginPath sets where RequireSession redirects anonymous requests
func WithLoginPath(path string) Option {
	return func(m *Manager) {
		m.loginPath = path
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager signing sessions with secret
func NewManager(secret string, cookies CookieSetter, flash *Flash, opts ...Option) *Manager {
	m := &Manager{
		tokenAuth:  jwtauth.New("HS256", []byte(secret), nil),
		cookies:    cookies,
		flash:      flash,
		cookieName: DefaultCookieName,
		duration:   DefaultDuration,
		loginPath:  "/sessions/new",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Duration returns the absolute session lifetime
func (m *Manager) Duration() time.Duration {
	return m.duration
}

// Writer returns a writer that stores sessions on w
func (m *Manager) Writer(w http.ResponseWriter) *CookieWriter {
	return &CookieWriter{manager: m, w: w}
}

// Clear removes the session cookie
func (m *Manager) Clear(w http.ResponseWriter) {
	m.cookies.ClearCookie(w, m.cookieName)
}

// Current returns the session carried by r, or an error when there is none
// or it has expired.
func (m *Manager) Current(r *http.Request) (*Session, error) {
	tokenString := m.tokenFromCookie(r)
	if tokenString == "" {
		return nil, fmt.Errorf("no session cookie")
	}
	token, err := jwtauth.VerifyToken(m.tokenAuth, tokenString)
	if err != nil {
		return nil, err
	}
	claims, err := token.AsMap(r.Context())
	if err != nil {
		return nil, err
	}
	return m.sessionFromClaims(claims)
}

// RequireSession rejects requests without a live session. Anonymous or
// expired requests are redirected to the login page with a flash message;
// otherwise the session and its user are placed in the request context.
func (m *Manager) RequireSession(users user.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		gate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				m.deny(w, r, "invalid session token", err)
				return
			}
			sess, err := m.sessionFromClaims(claims)
			if err != nil {
				m.deny(w, r, "invalid session claims", err)
				return
			}
			u, err := users.FindByID(r.Context(), sess.UserID)
			if err != nil {
				m.deny(w, r, "session user not found", err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			ctx = context.WithValue(ctx, userContextKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		return jwtauth.Verify(m.tokenAuth, m.tokenFromCookie)(gate)
	}
}

func (m *Manager) deny(w http.ResponseWriter, r *http.Request, reason string, err error) {
	slog.Info("Session required", "path", r.URL.Path, "reason", reason, "err", err)
	m.Clear(w)
	m.flash.Set(w, MessageSignInRequired)
	http.Redirect(w, r, m.loginPath, http.StatusFound)
}

func (m *Manager) tokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (m *Manager) sessionFromClaims(claims map[string]interface{}) (*Session, error) {
	rawID, _ := claims[ClaimUserID].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid %s claim: %w", ClaimUserID, err)
	}

	expiresAt, ok := unixClaim(claims[ClaimExpiresAt])
	if !ok {
		return nil, fmt.Errorf("invalid %s claim", ClaimExpiresAt)
	}
	if !m.now().Before(expiresAt) {
		return nil, fmt.Errorf("session expired at %s", expiresAt.Format(time.RFC3339))
	}

	return &Session{UserID: userID, ExpiresAt: expiresAt}, nil
}

func unixClaim(v interface{}) (time.Time, bool) {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0), true
	case int64:
		return time.Unix(n, 0), true
	case int:
		return time.Unix(int64(n), 0), true
	case json.Number:
		i, err := n.Int64()
		return time.Unix(i, 0), err == nil
	case time.Time:
		return n, true
	}
	return time.Time{}, false
}

// CookieWriter stores a session for one response
type CookieWriter struct {
	manager *Manager
	w       http.ResponseWriter
}

// Write signs userID and expiresAt into the session cookie
func (cw *CookieWriter) Write(userID uuid.UUID, expiresAt time.Time) error {
	claims := map[string]interface{}{
		ClaimUserID:    userID.String(),
		ClaimExpiresAt: expiresAt.Unix(),
	}
	jwtauth.SetIssuedAt(claims, cw.manager.now())
	jwtauth.SetExpiry(claims, expiresAt)

	_, tokenString, err := cw.manager.tokenAuth.Encode(claims)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}
	cw.manager.cookies.SetCookie(cw.w, cw.manager.cookieName, tokenString, expiresAt)
	return nil
}

// UserFromContext returns the user loaded by RequireSession
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userContextKey).(*user.User)
	return u, ok
}

// SessionFromContext returns the session loaded by RequireSession
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	return s, ok
}
