// Package bootstrap holds the startup wiring shared by the service and migrate commands.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/cohortanalysis/golang_services/internal/platform/config"
	"github.com/cohortanalysis/golang_services/internal/platform/database"
	"github.com/cohortanalysis/golang_services/internal/platform/secrets"
)

const secretCacheSize = 64

// SecretsProvider returns the configured provider wrapped in a TTL cache.
func SecretsProvider(ctx context.Context, cfg *config.Config) (secrets.Provider, error) {
	var base secrets.Provider
	switch cfg.SecretsSource {
	case "aws":
		p, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		base = p
	case "static":
		static := secrets.StaticProvider{
			cfg.SPAPISecretName: cfg.SPAPICredentialsJSON,
			cfg.AdsSecretName:   cfg.AdsCredentialsJSON,
		}
		if cfg.DBSecretName != "" {
			static[cfg.DBSecretName] = cfg.DBCredentialsJSON
		}
		base = static
	default:
		return nil, fmt.Errorf("unknown secrets source %q", cfg.SecretsSource)
	}
	if cfg.SecretCacheTTL <= 0 {
		return base, nil
	}
	return secrets.NewCachingProvider(base, secretCacheSize, cfg.SecretCacheTTL), nil
}

// DatabaseDSN builds the DSN from the database secret when DBSecretName is set,
// otherwise it returns PostgresDSN.
func DatabaseDSN(ctx context.Context, cfg *config.Config, provider secrets.Provider) (string, error) {
	if cfg.DBSecretName == "" {
		if cfg.PostgresDSN == "" {
			return "", fmt.Errorf("no database configured: set APP_POSTGRES_DSN or APP_DB_SECRET_NAME")
		}
		return cfg.PostgresDSN, nil
	}
	var creds database.Credentials
	if err := secrets.GetJSON(ctx, provider, cfg.DBSecretName, &creds); err != nil {
		return "", fmt.Errorf("loading database credentials: %w", err)
	}
	if creds.Host == "" || creds.Username == "" {
		return "", fmt.Errorf("database secret %s is missing host or username", cfg.DBSecretName)
	}
	return creds.DSN(), nil
}
