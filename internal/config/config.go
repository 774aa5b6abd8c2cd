// Package config loads server configuration from environment variables.
//
// We use struct tags + caarlos0/env instead of scattering os.Getenv calls
// around main: every knob is declared in one place with its default, and
// adding a provider credential is a one-line change.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// OAuthProvider holds the client credentials for one identity provider.
// A provider with an empty ClientID is considered unconfigured; its
// routes still exist but resolving against it fails cleanly.
type OAuthProvider struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/microblog.db"`

	// BaseURL is the externally visible origin of this server. Used to
	// build the per-provider OAuth callback URLs.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Google   OAuthProvider `envPrefix:"GOOGLE_"`
	Facebook OAuthProvider `envPrefix:"FACEBOOK_"`
	GitHub   OAuthProvider `envPrefix:"GITHUB_"`
	Twitter  OAuthProvider `envPrefix:"TWITTER_"`

	// IdentityTimeout bounds the whole resolver round trip (code exchange
	// + user-info fetch). On expiry the login fails as identity-unavailable
	// rather than hanging the request.
	IdentityTimeout time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"10s"`

	BillingBaseURL string        `env:"BILLING_BASE_URL" envDefault:""`
	BillingAPIKey  string        `env:"BILLING_API_KEY" envDefault:""`
	BillingTimeout time.Duration `env:"BILLING_TIMEOUT" envDefault:"5s"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	// Nested OAuthProvider fields resolve with their prefix, e.g.
	// GOOGLE_CLIENT_ID, GITHUB_CLIENT_SECRET.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	return cfg, nil
}

// CallbackURL returns the OAuth callback URL for the named provider.
func (c *Config) CallbackURL(provider string) string {
	return fmt.Sprintf("%s/auth/callback/%s", c.BaseURL, provider)
}
