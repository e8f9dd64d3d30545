package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	"github.com/tendant/azure-login/pkg/authorize"
	"github.com/tendant/azure-login/pkg/loginflow"
	"github.com/tendant/azure-login/pkg/sessions"
	"github.com/tendant/azure-login/pkg/user"
)

const (
	PathStart     = "/azure_login"
	PathLoginPage = "/sessions/new"
	PathCallback  = "/sessions"
	PathDashboard = "/"
)

// AuthorizationBuilder creates the redirect to the identity provider
type AuthorizationBuilder interface {
	Build(ctx context.Context) (*authorize.AuthorizationRequest, error)
}

// CallbackProcessor authenticates a login callback
type CallbackProcessor interface {
	ProcessCallback(ctx context.Context, req loginflow.Request) loginflow.Result
}

// Handle serves the browser login endpoints
type Handle struct {
	builder  AuthorizationBuilder
	states   *authorize.StateStore
	flow     CallbackProcessor
	sessions *sessions.Manager
	flash    *sessions.Flash
}

// NewHandle creates a new login handler
func NewHandle(
	builder AuthorizationBuilder,
	states *authorize.StateStore,
	flow CallbackProcessor,
	sessionManager *sessions.Manager,
	flash *sessions.Flash,
) *Handle {
	return &Handle{
		builder:  builder,
		states:   states,
		flow:     flow,
		sessions: sessionManager,
		flash:    flash,
	}
}

// Handler mounts the login endpoints. The dashboard is only reachable with a
// live session for a user found in users. limits wrap the two POST endpoints.
func Handler(h *Handle, users user.Repository, limits ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.With(limits...).Post(PathStart, h.StartLogin)
	r.Get(PathLoginPage, h.LoginPage)
	r.With(limits...).Post(PathCallback, h.Callback)
	r.Group(func(r chi.Router) {
		r.Use(h.sessions.RequireSession(users))
		r.Get(PathDashboard, h.Dashboard)
	})
	return r
}

// StartLogin handles POST /azure_login
func (h *Handle) StartLogin(w http.ResponseWriter, r *http.Request) {
	req, err := h.builder.Build(r.Context())
	if err != nil {
		slog.Error("Failed to build authorization url", "err", err)
		h.flash.Set(w, MessageAuthorizationDown)
		http.Redirect(w, r, PathLoginPage, http.StatusFound)
		return
	}

	h.states.Save(w, req)
	slog.Info("Redirecting to identity provider", "state_expires_at", req.StateExpiresAt)
	http.Redirect(w, r, req.URL, http.StatusFound)
}

// LoginPage handles GET /sessions/new
func (h *Handle) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Current(r); err == nil {
		http.Redirect(w, r, PathDashboard, http.StatusFound)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginPageResponse{
		Flash:       h.flash.Pop(w, r),
		LoginURL:    PathStart,
		LoginMethod: http.MethodPost,
	})
}

// Callback handles POST /sessions, the form post from the identity provider
func (h *Handle) Callback(w http.ResponseWriter, r *http.Request) {
	storedState := h.states.Take(w, r)

	if err := r.ParseForm(); err != nil {
		slog.Warn("Failed to parse callback form", "err", err)
		h.flash.Set(w, MessageLoginFailed)
		http.Redirect(w, r, PathLoginPage, http.StatusFound)
		return
	}

	result := h.flow.ProcessCallback(r.Context(), loginflow.Request{
		Session:          h.sessions.Writer(w),
		StoredState:      storedState,
		IDToken:          r.PostFormValue("id_token"),
		State:            r.PostFormValue("state"),
		Error:            r.PostFormValue("error"),
		ErrorDescription: r.PostFormValue("error_description"),
		Referer:          r.Referer(),
	})
	if !result.Success {
		h.flash.Set(w, MessageLoginFailed)
		http.Redirect(w, r, PathLoginPage, http.StatusFound)
		return
	}

	h.flash.Set(w, MessageLoggedIn)
	http.Redirect(w, r, PathDashboard, http.StatusFound)
}

// Dashboard handles GET /
func (h *Handle) Dashboard(w http.ResponseWriter, r *http.Request) {
	u, ok := sessions.UserFromContext(r.Context())
	sess, _ := sessions.SessionFromContext(r.Context())
	if !ok || sess == nil {
		http.Redirect(w, r, PathLoginPage, http.StatusFound)
		return
	}

	var resp DashboardResponse
	if err := copier.Copy(&resp, u); err != nil {
		slog.Error("Failed to build dashboard", "user_id", u.ID, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.PlainText(w, r, http.StatusText(http.StatusInternalServerError))
		return
	}
	resp.UserID = u.ID.String()
	resp.AzureID = u.ExternalID
	resp.ExpiresAt = sess.ExpiresAt
	resp.Flash = h.flash.Pop(w, r)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}
