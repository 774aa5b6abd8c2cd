// Package service — authentication business logic.
//
// Authenticator is the orchestrator for the two login flows. It sits
// between the HTTP handlers and the narrower collaborators:
//
//	AuthHandler (HTTP) → Authenticator ─→ AccountProvisioner → repositories
//	                            │─→ auth.Resolver   (identity provider)
//	                            │─→ BillingProvisioner (billing system)
//	                            └─→ auth.TokenService (token store)
//
// Each flow is a straight pipeline, terminal on the first failure. No
// compensating rollback exists anywhere: every committed step (a created
// user, an attached link, an issued token) is individually idempotent and
// harmless on its own, so a failed or abandoned request is simply retried
// whole and reuses what already exists.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// Authenticator composes credential and provider login, registration,
// and logout.
type Authenticator struct {
	accounts  *AccountProvisioner
	billing   *BillingProvisioner
	resolver  auth.Resolver
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	users     repository.UserRepository
	logger    *slog.Logger
}

// NewAuthenticator creates an Authenticator with all dependencies.
func NewAuthenticator(
	accounts *AccountProvisioner,
	billingProv *BillingProvisioner,
	resolver auth.Resolver,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	users repository.UserRepository,
	logger *slog.Logger,
) *Authenticator {
	return &Authenticator{
		accounts:  accounts,
		billing:   billingProv,
		resolver:  resolver,
		tokens:    tokens,
		passwords: passwords,
		users:     users,
		logger:    logger,
	}
}

// AuthResult bundles everything a successful authentication produces.
type AuthResult struct {
	User              *model.User
	Token             string
	BillingCustomerID string
	// SocialAccountLinked is true when the identity link already existed
	// before this login (provider flow only).
	SocialAccountLinked bool
}

// AuthenticateWithCredentials runs the email/password flow:
// resolve → ensure billing customer → issue token.
//
// The resolve step has no side effects, so a credentials failure leaves
// nothing behind. Billing failure does not block the login — see
// ensureBilling.
func (s *Authenticator) AuthenticateWithCredentials(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.accounts.ResolveByCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	billingID := s.ensureBilling(ctx, user)

	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated with credentials", slog.String("userID", user.ID))

	return &AuthResult{
		User:              user,
		Token:             token,
		BillingCustomerID: billingID,
	}, nil
}

// AuthenticateWithProvider runs the OAuth flow for an allow-listed
// provider: resolve identity → resolve account → ensure billing customer
// → issue token.
//
// The resolver performs all its network I/O before the first local write,
// so an identity failure leaves zero store changes behind.
func (s *Authenticator) AuthenticateWithProvider(ctx context.Context, provider, code string) (*AuthResult, error) {
	profile, err := s.resolver.Resolve(ctx, provider, code)
	if err != nil {
		return nil, err
	}

	user, linked, err := s.accounts.ResolveBySocialIdentity(ctx, provider, profile)
	if err != nil {
		return nil, fmt.Errorf("service/auth: resolving account for %s identity: %w", provider, err)
	}

	billingID := s.ensureBilling(ctx, user)

	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated with provider",
		slog.String("userID", user.ID),
		slog.String("provider", provider),
		slog.Bool("linkExisted", linked),
	)

	return &AuthResult{
		User:                user,
		Token:               token,
		BillingCustomerID:   billingID,
		SocialAccountLinked: linked,
	}, nil
}

// AuthRedirectURL builds the consent URL for the provider redirect route.
func (s *Authenticator) AuthRedirectURL(provider, state string) (string, error) {
	return s.resolver.AuthURL(provider, state)
}

// Register creates a credentialed user and logs them in.
// Input validation (lengths, password policy, email syntax) happens at
// the handler boundary; uniqueness is enforced here by the store.
func (s *Authenticator) Register(ctx context.Context, name, username, email, password string) (*AuthResult, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperror.ErrConflict) {
			// Surface duplicate email/username as a field-level
			// validation failure, matching the registration form.
			return nil, apperror.ValidationFailed(appErr.Field, appErr.Message)
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("username", username))

	return &AuthResult{User: user, Token: token}, nil
}

// Logout revokes every live token for the user. Sessions on other
// devices die with this one — that is the original product behavior.
func (s *Authenticator) Logout(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("service/auth: logout for user %s: %w", userID, err)
	}
	s.logger.Info("user logged out", slog.String("userID", userID))
	return nil
}

// GetUserByID returns the user for the given internal ID. Used by the
// /me handler after the middleware resolves the bearer token.
func (s *Authenticator) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// UpdatePassword verifies the old password and stores a new hash.
// Existing tokens stay valid; only an explicit logout revokes them.
func (s *Authenticator) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}

	if user.PasswordHash == nil || s.passwords.Verify(*user.PasswordHash, oldPassword) != nil {
		return apperror.InvalidCredentials()
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/auth: hashing new password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/auth: storing new password for user %s: %w", userID, err)
	}

	s.logger.Info("password updated", slog.String("userID", userID))
	return nil
}

// ensureBilling attempts the billing linkage and absorbs its failure.
//
// Policy: a billing-provider outage must not lock users out. On failure
// the login proceeds with an empty billing customer id and the linkage is
// retried lazily on the next authentication (EnsureBillingCustomer is
// idempotent, so the retry is free).
func (s *Authenticator) ensureBilling(ctx context.Context, user *model.User) string {
	billingID, err := s.billing.EnsureBillingCustomer(ctx, user)
	if err != nil {
		s.logger.Error("billing provisioning failed, continuing without linkage",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return billingID
}
