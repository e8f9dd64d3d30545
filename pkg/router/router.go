package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	loginapi "github.com/tendant/azure-login/pkg/loginflow/api"
	"github.com/tendant/azure-login/pkg/metrics"
	"github.com/tendant/azure-login/pkg/ratelimit"
	"github.com/tendant/azure-login/pkg/user"
)

const DefaultMetricsPath = "/metrics"

// Config holds the handlers mounted by SetupRoutes
type Config struct {
	LoginHandle *loginapi.Handle
	Users       user.Repository

	// MetricsPath exposes Prometheus metrics when set
	MetricsPath string

	// RateLimit guards the login POST endpoints when set
	RateLimit *ratelimit.Middleware
}

// SetupRoutes installs the request metrics middleware and mounts the login
// endpoints at the root. Must be called before any other route is added to router.
func SetupRoutes(router chi.Router, cfg Config) {
	router.Use(metrics.Middleware)

	if cfg.MetricsPath != "" {
		router.Method(http.MethodGet, cfg.MetricsPath, metrics.Handler())
	}

	var limits []func(http.Handler) http.Handler
	if cfg.RateLimit != nil {
		limits = append(limits, cfg.RateLimit.Handler)
	}
	router.Mount("/", loginapi.Handler(cfg.LoginHandle, cfg.Users, limits...))
}
