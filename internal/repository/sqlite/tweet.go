package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// compile-time check that *DB implements repository.TweetRepository
var _ repository.TweetRepository = (*DB)(nil)

// CreateTweet inserts a tweet, assigning ID and created_at.
func (db *DB) CreateTweet(ctx context.Context, tweet *model.Tweet) error {
	tweet.ID = xid.New().String()
	tweet.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tweets (id, user_id, body, created_at) VALUES (?, ?, ?, ?)`,
		tweet.ID, tweet.UserID, tweet.Body, tweet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting tweet for user %s: %w", tweet.UserID, err)
	}
	return nil
}

// GetTweetByID retrieves a single tweet.
func (db *DB) GetTweetByID(ctx context.Context, id string) (*model.Tweet, error) {
	var t model.Tweet
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, body, created_at FROM tweets WHERE id = ?`, id,
	).Scan(&t.ID, &t.UserID, &t.Body, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("tweet", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting tweet %s: %w", id, err)
	}
	return &t, nil
}

// ListTweets returns tweets newest-first.
func (db *DB) ListTweets(ctx context.Context, opts repository.ListOptions) ([]model.Tweet, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, body, created_at FROM tweets
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tweets: %w", err)
	}
	defer rows.Close()

	tweets := []model.Tweet{}
	for rows.Next() {
		var t model.Tweet
		if err := rows.Scan(&t.ID, &t.UserID, &t.Body, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tweet: %w", err)
		}
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tweets: %w", err)
	}

	return tweets, nil
}

// DeleteTweet removes a tweet by ID.
func (db *DB) DeleteTweet(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM tweets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting tweet %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("tweet", id)
	}
	return nil
}
