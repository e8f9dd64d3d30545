package authorize

import (
	"net/http"

	"github.com/tendant/azure-login/pkg/sessions"
)

const StateCookieName = "azure_login_state"

// StateStore keeps the expected state in a host-only cookie between the
// redirect and the callback.
type StateStore struct {
	cookies sessions.CookieSetter
}

// NewStateStore creates a StateStore writing through cookies
func NewStateStore(cookies sessions.CookieSetter) *StateStore {
	return &StateStore{cookies: cookies}
}

// Save stores the state of req until it expires
func (s *StateStore) Save(w http.ResponseWriter, req *AuthorizationRequest) {
	s.cookies.SetCookie(w, StateCookieName, req.State, req.StateExpiresAt)
}

// Take returns the stored state and deletes the cookie. Returns "" when none is stored.
func (s *StateStore) Take(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(StateCookieName)
	s.cookies.ClearCookie(w, StateCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
