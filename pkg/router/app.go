package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/tendant/azure-login/pkg/ratelimit"
	"github.com/tendant/chi-demo/app"
)

// NewApp builds the chi-demo application stack. The socket peer is recorded
// before middleware.RealIP rewrites RemoteAddr, so the login rate limiter
// only honours forwarding headers when configured to.
func NewApp(config app.AppConfig, opts ...app.Option) *app.App {
	r := chi.NewRouter()
	r.Use(ratelimit.CapturePeer)

	return app.NewApp(append([]app.Option{
		app.WithRouter(r),
		app.WithAppConfig(config),
		app.WithCors(app.DefaultCorsOptions()),
		app.WithReqLogger(app.DefaultHttpLogger()),
	}, opts...)...)
}
