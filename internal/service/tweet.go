package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// maxTweetLength bounds the tweet body in runes, not bytes.
const maxTweetLength = 280

// TweetService handles the public content surface. It exists mostly to
// demonstrate the authenticated API: every operation that needs the
// acting user takes the userID as an explicit parameter — there is no
// ambient "current user" anywhere below the HTTP layer.
type TweetService struct {
	tweets repository.TweetRepository
	logger *slog.Logger
}

// NewTweetService creates a TweetService.
func NewTweetService(tweets repository.TweetRepository, logger *slog.Logger) *TweetService {
	return &TweetService{tweets: tweets, logger: logger}
}

// Create validates and stores a tweet for the acting user.
func (s *TweetService) Create(ctx context.Context, userID, body string) (*model.Tweet, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.ValidationFailed("body", "tweet body must not be empty")
	}
	if utf8.RuneCountInString(body) > maxTweetLength {
		return nil, apperror.ValidationFailed("body",
			fmt.Sprintf("tweet body must be %d characters or fewer", maxTweetLength))
	}

	tweet := &model.Tweet{UserID: userID, Body: body}
	if err := s.tweets.CreateTweet(ctx, tweet); err != nil {
		return nil, fmt.Errorf("service/tweet: creating tweet: %w", err)
	}

	s.logger.Info("tweet created", slog.String("tweetID", tweet.ID), slog.String("userID", userID))
	return tweet, nil
}

// GetByID returns a single tweet.
func (s *TweetService) GetByID(ctx context.Context, id string) (*model.Tweet, error) {
	tweet, err := s.tweets.GetTweetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/tweet: fetching tweet %s: %w", id, err)
	}
	return tweet, nil
}

// List returns tweets newest-first.
func (s *TweetService) List(ctx context.Context, opts repository.ListOptions) ([]model.Tweet, error) {
	tweets, err := s.tweets.ListTweets(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/tweet: listing tweets: %w", err)
	}
	return tweets, nil
}

// Delete removes a tweet owned by the acting user. Deleting someone
// else's tweet is forbidden, not hidden as a 404 — ownership of content
// is public information here.
func (s *TweetService) Delete(ctx context.Context, userID, id string) error {
	tweet, err := s.tweets.GetTweetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service/tweet: fetching tweet %s: %w", id, err)
	}
	if tweet.UserID != userID {
		return apperror.Forbidden("you can only delete your own tweets")
	}
	if err := s.tweets.DeleteTweet(ctx, id); err != nil {
		return fmt.Errorf("service/tweet: deleting tweet %s: %w", id, err)
	}
	return nil
}
