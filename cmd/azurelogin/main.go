package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/azure-login/pkg/authorize"
	pkgconfig "github.com/tendant/azure-login/pkg/config"
	"github.com/tendant/azure-login/pkg/idtoken"
	"github.com/tendant/azure-login/pkg/loginflow"
	loginapi "github.com/tendant/azure-login/pkg/loginflow/api"
	"github.com/tendant/azure-login/pkg/metrics"
	"github.com/tendant/azure-login/pkg/nonce"
	"github.com/tendant/azure-login/pkg/openid"
	"github.com/tendant/azure-login/pkg/ratelimit"
	"github.com/tendant/azure-login/pkg/router"
	"github.com/tendant/azure-login/pkg/sessions"
	"github.com/tendant/azure-login/pkg/user"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
)

type Config struct {
	Database  pkgconfig.DatabaseConfig
	Azure     pkgconfig.AzureConfig
	Session   pkgconfig.SessionConfig
	RateLimit pkgconfig.RateLimitConfig
	AppConfig app.AppConfig

	MetricsPath string `env:"METRICS_PATH" env-default:"/metrics"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	loadEnvFile()

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}

	if err := pkgconfig.RequireSettings(config.Azure, config.Session); err != nil {
		slog.Error("Missing required settings", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := config.Database.ToDbConfig()
	pool, err := dbutils.NewDbPool(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User, "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, pool)

	provider := openid.NewProvider(
		config.Azure.OpenIDConfigurationURL(),
		openid.WithFetchTimeout(config.Azure.FetchTimeout),
		openid.WithCachePolicy(config.Azure.CacheTTL, config.Azure.CacheGrace),
	)

	nonceService := nonce.NewService(nonce.NewPostgresRepository(pool), nonce.WithTTL(config.Azure.NonceTTL))
	go nonceService.RunPurger(ctx, config.Azure.NoncePurgeInterval)

	userRepo := user.NewPostgresRepository(pool)

	cookies := sessions.NewCookieSetter(config.Session.CookieSecure)
	flash := sessions.NewFlash(cookies)
	sessionManager := sessions.NewManager(
		config.Session.Secret,
		cookies,
		flash,
		sessions.WithCookieName(config.Session.CookieName),
		sessions.WithDuration(config.Session.Duration),
		sessions.WithLoginPath(loginapi.PathLoginPage),
	)

	flowService := loginflow.NewLoginFlowService(loginflow.ServiceDependencies{
		Verifier:        idtoken.NewVerifier(provider, nonceService, config.Azure.ClientID),
		Users:           user.NewResolver(userRepo),
		ExpectedReferer: config.Azure.ExpectedReferer(),
		SessionDuration: sessionManager.Duration(),
	})

	builder := authorize.NewRequestBuilder(
		provider,
		nonceService,
		config.Azure.ClientID,
		config.Azure.RedirectURL,
		authorize.WithStateTTL(config.Azure.StateTTL),
	)
	states := authorize.NewStateStore(sessions.NewCrossSiteCookieSetter())

	loginHandle := loginapi.NewHandle(builder, states, flowService, sessionManager, flash)

	var rateLimit *ratelimit.Middleware
	if config.RateLimit.Enabled {
		rateLimit = ratelimit.NewMiddleware(ratelimit.Config{
			Capacity:          config.RateLimit.Burst,
			RefillRate:        config.RateLimit.RefillRate(),
			BucketTTL:         config.RateLimit.BucketTTL,
			TrustForwardedFor: config.RateLimit.TrustForwardedFor,
		})
		go rateLimit.Limiter().RunPruner(ctx)
	}

	server := router.NewApp(config.AppConfig, app.WithMetrics(true))
	router.SetupRoutes(server.R, router.Config{
		LoginHandle: loginHandle,
		Users:       userRepo,
		MetricsPath: config.MetricsPath,
		RateLimit:   rateLimit,
	})
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	slog.Info("Azure login ready",
		"tenant", config.Azure.TenantID,
		"discovery_url", config.Azure.OpenIDConfigurationURL(),
		"redirect_url", config.Azure.RedirectURL,
	)
	server.Run()
}

// loadEnvFile loads .env from the executable directory, falling back to the
// working directory.
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}
