package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// provisionRetries bounds the read-back loops in ResolveBySocialIdentity.
// Each retry only happens after a lost race; exhausting them surfaces as
// an internal conflict error.
const provisionRetries = 3

// AccountProvisioner idempotently resolves an external identity or a set
// of credentials to exactly one local user.
//
// Every path through this type is safe to repeat: a retried login finds
// and reuses whatever an earlier (or concurrent) attempt committed rather
// than duplicating it. The race-prone step — two logins for the same
// brand-new identity — is serialized on the store's unique constraints,
// not on in-process locks, so it holds across processes too.
type AccountProvisioner struct {
	users     repository.UserRepository
	socials   repository.SocialAccountRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAccountProvisioner creates an AccountProvisioner.
func NewAccountProvisioner(
	users repository.UserRepository,
	socials repository.SocialAccountRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AccountProvisioner {
	return &AccountProvisioner{
		users:     users,
		socials:   socials,
		passwords: passwords,
		logger:    logger,
	}
}

// ResolveBySocialIdentity maps (provider, remote profile) to one local
// user, creating whatever is missing. The returned linked flag reports
// whether the identity link already existed before this call.
//
// Resolution order:
//  1. link exists for (provider, remote-id) → its owning user;
//  2. user exists with the profile's email → attach a new link to that
//     user (implicit account merge — the provider has verified the email);
//  3. neither → create user, then attach the link.
//
// Steps 2 and 3 race against concurrent logins for the same identity.
// The store's conditional insert admits at most one link row per pair;
// on conflict we loop back and re-read the winner instead of erroring.
func (p *AccountProvisioner) ResolveBySocialIdentity(ctx context.Context, provider string, profile *auth.RemoteProfile) (*model.User, bool, error) {
	if profile == nil || profile.RemoteID == "" {
		return nil, false, fmt.Errorf("service/provision: remote profile must have a subject id")
	}

	for attempt := 0; attempt < provisionRetries; attempt++ {
		// Step 1: existing link wins outright, no writes.
		account, err := p.socials.GetSocialAccount(ctx, provider, profile.RemoteID)
		if err == nil {
			user, err := p.users.GetUserByID(ctx, account.UserID)
			if err != nil {
				return nil, false, fmt.Errorf("service/provision: loading user %s for link %s/%s: %w",
					account.UserID, provider, profile.RemoteID, err)
			}
			return user, true, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, false, fmt.Errorf("service/provision: looking up link %s/%s: %w",
				provider, profile.RemoteID, err)
		}

		// Step 2: merge onto an existing account by verified email.
		user, err := p.findOrCreateUser(ctx, profile)
		if err != nil {
			return nil, false, err
		}

		// Step 3: attach the link. A conflict means a concurrent login
		// linked this identity first — loop and resolve through step 1.
		link := &model.SocialAccount{
			UserID:      user.ID,
			Provider:    provider,
			RemoteID:    profile.RemoteID,
			DisplayName: profile.Name,
		}
		err = p.socials.CreateSocialAccount(ctx, link)
		if errors.Is(err, apperror.ErrConflict) {
			p.logger.Info("lost social link race, re-reading",
				slog.String("provider", provider),
				slog.String("remoteID", profile.RemoteID),
			)
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("service/provision: linking %s/%s to user %s: %w",
				provider, profile.RemoteID, user.ID, err)
		}

		p.logger.Info("social identity linked",
			slog.String("userID", user.ID),
			slog.String("provider", provider),
		)
		return user, false, nil
	}

	return nil, false, apperror.Conflict("social account", provider+"/"+profile.RemoteID)
}

// ResolveByCredentials maps (email, password) to the matching user.
//
// Every failure — unknown email, a social-only account with no password,
// a wrong password — collapses into the same InvalidCredentials error so
// the response cannot be used to enumerate registered emails.
func (p *AccountProvisioner) ResolveByCredentials(ctx context.Context, email, password string) (*model.User, error) {
	user, err := p.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.InvalidCredentials()
	}
	if err != nil {
		return nil, fmt.Errorf("service/provision: looking up user by email: %w", err)
	}

	if user.PasswordHash == nil {
		// Social-only account; password login is impossible by definition.
		return nil, apperror.InvalidCredentials()
	}

	if err := p.passwords.Verify(*user.PasswordHash, password); err != nil {
		return nil, apperror.InvalidCredentials()
	}

	return user, nil
}

// findOrCreateUser resolves the profile's email to an existing user or
// creates a fresh one with a placeholder username.
func (p *AccountProvisioner) findOrCreateUser(ctx context.Context, profile *auth.RemoteProfile) (*model.User, error) {
	if profile.Email != "" {
		user, err := p.users.GetUserByEmail(ctx, profile.Email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/provision: looking up user by email: %w", err)
		}
	}

	// New user. The placeholder username is expected to be replaced by a
	// later profile update; it only has to be unique right now.
	for attempt := 0; attempt < provisionRetries; attempt++ {
		user := &model.User{
			Name:      profile.Name,
			Username:  placeholderUsername(profile.Email),
			Email:     profile.Email,
			AvatarURL: profile.AvatarURL,
		}
		err := p.users.CreateUser(ctx, user)
		if err == nil {
			return user, nil
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperror.ErrConflict) {
			if appErr.Field == "email" {
				// A concurrent login created this user between our read
				// and write. Re-read and merge onto it.
				existing, rerr := p.users.GetUserByEmail(ctx, profile.Email)
				if rerr == nil {
					return existing, nil
				}
				return nil, fmt.Errorf("service/provision: re-reading user after email conflict: %w", rerr)
			}
			// Username collision: astronomically unlikely with a random
			// prefix, but the invariant says retry, so retry.
			continue
		}
		return nil, fmt.Errorf("service/provision: creating user for %s: %w", profile.RemoteID, err)
	}

	return nil, apperror.Conflict("user", profile.Email)
}

// placeholderUsername derives a stand-in username from the email's local
// part, prefixed with 7 random characters to keep it unique. An email-less
// profile gets the prefix alone plus a fixed stem.
func placeholderUsername(email string) string {
	raw := make([]byte, 4)
	rand.Read(raw) // crypto/rand never fails on supported platforms
	prefix := hex.EncodeToString(raw)[:7]

	local := "user"
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	return prefix + "_" + local
}
