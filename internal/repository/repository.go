// Package repository declares the persistence boundaries. Services depend
// on these interfaces; internal/repository/sqlite provides the store.
package repository

import (
	"context"

	"github.com/sakif/microblog/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository persists user accounts.
//
// CreateUser must enforce the case-insensitive uniqueness of email and
// username atomically: a duplicate fails with apperror.ErrConflict
// carrying the offending field, never with a second row.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// SetBillingCustomerID persists the billing linkage set-once: the
	// first write wins and every caller gets back the persisted id.
	SetBillingCustomerID(ctx context.Context, userID, customerID string) (string, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// SocialAccountRepository persists provider identity links.
//
// CreateSocialAccount is a conditional insert serialized on the
// (provider, remote_id) unique constraint: when the pair already exists
// it writes nothing and fails with apperror.ErrConflict, so the caller
// can re-read the winner.
type SocialAccountRepository interface {
	CreateSocialAccount(ctx context.Context, account *model.SocialAccount) error
	GetSocialAccount(ctx context.Context, provider, remoteID string) (*model.SocialAccount, error)
}

// TokenRepository persists bearer-token digests. Plaintext tokens never
// reach this layer.
type TokenRepository interface {
	InsertToken(ctx context.Context, userID, digest string) error
	// FindUserByTokenDigest resolves a live (non-revoked) token digest to
	// its owning user, apperror.ErrNotFound otherwise.
	FindUserByTokenDigest(ctx context.Context, digest string) (string, error)
	RevokeAllTokens(ctx context.Context, userID string) error
}

type TweetRepository interface {
	CreateTweet(ctx context.Context, tweet *model.Tweet) error
	GetTweetByID(ctx context.Context, id string) (*model.Tweet, error)
	ListTweets(ctx context.Context, opts ListOptions) ([]model.Tweet, error)
	DeleteTweet(ctx context.Context, id string) error
}
