package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
)

// RemoteProfile is what an identity provider tells us about the user who
// just authorized: the provider-scoped subject identifier plus whatever
// profile data the provider shares. Email may be empty (GitHub users can
// hide it; Twitter's v2 user endpoint never returns one).
type RemoteProfile struct {
	RemoteID  string
	Email     string
	Name      string
	AvatarURL string
}

// Resolver exchanges an authorization code for a RemoteProfile.
//
// Failure contract: an unknown provider name fails with
// apperror.ErrInvalidProvider before any network I/O; everything that can
// go wrong after that — rejected or expired code, network failure,
// timeout, a response with no usable subject — fails uniformly with
// apperror.ErrIdentityUnavailable. The orchestrator must not try to tell
// those apart, because the provider API gives no stronger signal.
type Resolver interface {
	AuthURL(provider, state string) (string, error)
	Resolve(ctx context.Context, provider, code string) (*RemoteProfile, error)
}

// ProviderCredentials is one provider's OAuth app registration.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// twitterEndpoint is Twitter's OAuth 2.0 endpoint pair. x/oauth2 ships
// endpoint subpackages for the other three providers but not this one.
var twitterEndpoint = oauth2.Endpoint{
	AuthURL:  "https://twitter.com/i/oauth2/authorize",
	TokenURL: "https://api.twitter.com/2/oauth2/token",
}

// provider bundles the oauth2 config with the provider-specific user-info
// call. The oauth2 library normalizes the code exchange; what differs per
// provider is the profile endpoint and its JSON shape.
type provider struct {
	config      *oauth2.Config
	userInfoURL string
	decode      func(r *http.Response) (*RemoteProfile, error)
}

// OAuthResolver implements Resolver over the standard Authorization Code
// flow for the four allow-listed providers.
type OAuthResolver struct {
	providers map[string]*provider
	timeout   time.Duration
}

// NewOAuthResolver builds a resolver from per-provider credentials.
// timeout bounds the whole Resolve round trip (exchange + user info).
func NewOAuthResolver(creds map[string]ProviderCredentials, timeout time.Duration) *OAuthResolver {
	r := &OAuthResolver{
		providers: make(map[string]*provider),
		timeout:   timeout,
	}

	if c, ok := creds[model.ProviderGitHub]; ok {
		r.providers[model.ProviderGitHub] = &provider{
			config: &oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.CallbackURL,
				Scopes:       []string{"read:user", "user:email"},
				Endpoint:     github.Endpoint,
			},
			userInfoURL: "https://api.github.com/user",
			decode:      decodeGitHubProfile,
		}
	}

	if c, ok := creds[model.ProviderGoogle]; ok {
		r.providers[model.ProviderGoogle] = &provider{
			config: &oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.CallbackURL,
				Scopes:       []string{"openid", "email", "profile"},
				Endpoint:     google.Endpoint,
			},
			userInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
			decode:      decodeGoogleProfile,
		}
	}

	if c, ok := creds[model.ProviderFacebook]; ok {
		r.providers[model.ProviderFacebook] = &provider{
			config: &oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.CallbackURL,
				Scopes:       []string{"email", "public_profile"},
				Endpoint:     facebook.Endpoint,
			},
			userInfoURL: "https://graph.facebook.com/me?fields=id,name,email",
			decode:      decodeFacebookProfile,
		}
	}

	if c, ok := creds[model.ProviderTwitter]; ok {
		r.providers[model.ProviderTwitter] = &provider{
			config: &oauth2.Config{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURL:  c.CallbackURL,
				Scopes:       []string{"users.read", "tweet.read"},
				Endpoint:     twitterEndpoint,
			},
			userInfoURL: "https://api.twitter.com/2/users/me",
			decode:      decodeTwitterProfile,
		}
	}

	return r
}

// AuthURL returns the provider's consent URL for the given CSRF state.
func (r *OAuthResolver) AuthURL(name, state string) (string, error) {
	p, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Resolve trades the authorization code for a RemoteProfile.
//
// Both network calls run under one deadline: a hung provider turns into an
// identity-unavailable failure instead of a hung login request.
func (r *OAuthResolver) Resolve(ctx context.Context, name, code string) (*RemoteProfile, error) {
	p, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Step 1: exchange the authorization code for an access token.
	// Server-to-server, authenticated with our client secret.
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.IdentityUnavailable(fmt.Errorf("exchanging code with %s: %w", name, err))
	}

	// Step 2: fetch the profile. config.Client returns an *http.Client
	// that injects the bearer token into every request.
	resp, err := p.config.Client(ctx, token).Get(p.userInfoURL)
	if err != nil {
		return nil, apperror.IdentityUnavailable(fmt.Errorf("fetching %s profile: %w", name, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.IdentityUnavailable(fmt.Errorf("%s profile endpoint returned status %d", name, resp.StatusCode))
	}

	profile, err := p.decode(resp)
	if err != nil {
		return nil, apperror.IdentityUnavailable(fmt.Errorf("decoding %s profile: %w", name, err))
	}
	if profile.RemoteID == "" {
		// A 200 with no subject is still a failed resolution.
		return nil, apperror.IdentityUnavailable(errors.New(name + " returned a profile without a subject id"))
	}

	return profile, nil
}

func (r *OAuthResolver) lookup(name string) (*provider, error) {
	if !model.KnownProvider(name) {
		return nil, apperror.InvalidProvider(name)
	}
	p, ok := r.providers[name]
	if !ok || p.config.ClientID == "" {
		// Allow-listed but not configured on this deployment. From the
		// caller's point of view the provider simply isn't reachable.
		return nil, apperror.IdentityUnavailable(errors.New(name + " is not configured"))
	}
	return p, nil
}

func decodeGitHubProfile(resp *http.Response) (*RemoteProfile, error) {
	// GitHub returns a large object; we only unmarshal what we keep.
	var body struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	name := body.Name
	if name == "" {
		name = body.Login
	}
	remoteID := ""
	if body.ID != 0 {
		remoteID = strconv.FormatInt(body.ID, 10)
	}
	return &RemoteProfile{
		RemoteID:  remoteID,
		Email:     body.Email,
		Name:      name,
		AvatarURL: body.AvatarURL,
	}, nil
}

func decodeGoogleProfile(resp *http.Response) (*RemoteProfile, error) {
	var body struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &RemoteProfile{
		RemoteID:  body.Sub,
		Email:     body.Email,
		Name:      body.Name,
		AvatarURL: body.Picture,
	}, nil
}

func decodeFacebookProfile(resp *http.Response) (*RemoteProfile, error) {
	var body struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &RemoteProfile{
		RemoteID: body.ID,
		Email:    body.Email,
		Name:     body.Name,
	}, nil
}

func decodeTwitterProfile(resp *http.Response) (*RemoteProfile, error) {
	// Twitter's v2 "me" endpoint wraps the user in a data envelope and
	// never includes an email.
	var body struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	name := body.Data.Name
	if name == "" {
		name = body.Data.Username
	}
	return &RemoteProfile{
		RemoteID: body.Data.ID,
		Name:     name,
	}, nil
}
