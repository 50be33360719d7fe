package secrets

import (
	"context"
	"errors"
	"sort"

	"github.com/jordanlanch/assetdesk/config"
)

// sensitiveKeys maps secret names to the config fields they override
func sensitiveKeys(cfg *config.Config) map[string]*string {
	return map[string]*string{
		"JWT_SECRET":            &cfg.JWTSecret,
		"DATABASE_URL":          &cfg.DatabaseURL,
		"REDIS_URL":             &cfg.RedisURL,
		"STRIPE_SECRET_KEY":     &cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": &cfg.StripeWebhookSecret,
		"SENDGRID_API_KEY":      &cfg.SendGridAPIKey,
		"SENTRY_DSN":            &cfg.SentryDSN,
		"SLACK_WEBHOOK_URL":     &cfg.SlackWebhookURL,
	}
}

// Apply overwrites the sensitive fields of cfg with the values the manager holds.
// Keys the backend does not know keep their current value. It returns the
// names of the overridden fields.
func Apply(ctx context.Context, m Manager, cfg *config.Config) ([]string, error) {
	var applied []string
	for key, field := range sensitiveKeys(cfg) {
		value, err := m.GetSecret(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return applied, err
		}
		if value != *field {
			*field = value
			applied = append(applied, key)
		}
	}
	sort.Strings(applied)
	return applied, nil
}

// Load applies the configured backend to cfg. The environment backend is a no-op
// because config.Load already read the environment.
func Load(ctx context.Context, cfg *config.Config) ([]string, error) {
	if cfg.SecretsBackend == "" || cfg.SecretsBackend == BackendEnv {
		return nil, nil
	}

	m, err := NewManager(ConfigFrom(cfg))
	if err != nil {
		return nil, err
	}
	defer m.Close()

	return Apply(ctx, m, cfg)
}
