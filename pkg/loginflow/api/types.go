package api

import "time"

const (
	MessageLoggedIn          = "Logged in Successfully"
	MessageLoginFailed       = "Login was unsuccessful. Please try again"
	MessageAuthorizationDown = "Unable to get authorization url. Please try again later"
)

// LoginPageResponse describes the login entry page
type LoginPageResponse struct {
	Flash       string `json:"flash,omitempty"`
	LoginURL    string `json:"login_url"`
	LoginMethod string `json:"login_method"`
}

// DashboardResponse shows the signed-in user and their session
type DashboardResponse struct {
	Flash     string    `json:"flash,omitempty"`
	UserID    string    `json:"user_id"`
	AzureID   string    `json:"azure_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
