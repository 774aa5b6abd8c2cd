package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/repository"
)

// compile-time check that *DB implements repository.TokenRepository
var _ repository.TokenRepository = (*DB)(nil)

// InsertToken stores a freshly minted token digest for the user.
func (db *DB) InsertToken(ctx context.Context, userID, digest string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, digest, created_at) VALUES (?, ?, ?, ?)`,
		xid.New().String(), userID, digest, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting token for user %s: %w", userID, err)
	}
	return nil
}

// FindUserByTokenDigest resolves a live token digest to its owning user.
// Revoked rows are filtered here, so a revoked token is indistinguishable
// from one that never existed.
func (db *DB) FindUserByTokenDigest(ctx context.Context, digest string) (string, error) {
	var userID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id FROM tokens WHERE digest = ? AND revoked_at IS NULL`,
		digest,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperror.NotFound("token", "presented value")
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: looking up token: %w", err)
	}
	return userID, nil
}

// RevokeAllTokens stamps every live token for the user as revoked.
// Tokens issued after this call keep a NULL revoked_at and stay valid.
func (db *DB) RevokeAllTokens(ctx context.Context, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: revoking tokens for user %s: %w", userID, err)
	}
	return nil
}
