package sessions

import (
	"encoding/base64"
	"net/http"
	"time"
)

const (
	FlashCookieName = "azure_login_flash"
	flashTTL        = time.Minute
)

// Flash carries one message across a redirect
type Flash struct {
	cookies CookieSetter
}

// NewFlash creates a Flash stored through cookies
func NewFlash(cookies CookieSetter) *Flash {
	return &Flash{cookies: cookies}
}

// Set stores message for the next request
func (f *Flash) Set(w http.ResponseWriter, message string) {
	f.cookies.SetCookie(w, FlashCookieName, base64.RawURLEncoding.EncodeToString([]byte(message)), time.Now().Add(flashTTL))
}

// Pop returns the pending message, if any, and clears it
func (f *Flash) Pop(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	f.cookies.ClearCookie(w, FlashCookieName)

	message, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(message)
}
