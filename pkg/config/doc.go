// Package config loads and checks the service configuration.
//
// Each section is a struct with cleanenv tags, read in one pass by the
// command:
//
//	var cfg struct {
//		Azure   config.AzureConfig
//		Session config.SessionConfig
//	}
//	cleanenv.ReadEnv(&cfg)
//
// Defaults live in the env-default tags, so a section read from an empty
// environment is ready to use apart from the required keys.
//
// # Required settings
//
// RequireSettings reports every missing or malformed key at once. The
// service refuses to start without SESSION_SECRET, AZURE_TENANT_ID and
// AZURE_CLIENT_ID:
//
//	if err := config.RequireSettings(cfg.Azure, cfg.Session); err != nil {
//		slog.Error("Missing required settings", "error", err)
//		os.Exit(1)
//	}
//
// # Validation helpers
//
// Validate runs validator functions and merges their ValidationErrors.
// RequireNonEmpty, RequireValidURL and RequirePositiveDuration each check a
// single key; WhenSet applies a check only to optional keys that were given.
package config
