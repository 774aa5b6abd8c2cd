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

// compile-time check that *DB implements repository.SocialAccountRepository
var _ repository.SocialAccountRepository = (*DB)(nil)

// CreateSocialAccount inserts a social identity link, conditional on the
// (provider, remote_id) pair not existing yet.
//
// ON CONFLICT DO NOTHING makes the insert atomic with respect to the
// unique constraint: two racing logins for the same identity cannot both
// persist a row. The loser sees zero rows affected and gets
// apperror.ErrConflict, whose contract is "re-read, the row exists now" —
// it is a signal, not a failure.
func (db *DB) CreateSocialAccount(ctx context.Context, account *model.SocialAccount) error {
	account.ID = xid.New().String()
	account.CreatedAt = time.Now()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO social_accounts (id, user_id, provider, remote_id, display_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, remote_id) DO NOTHING`,
		account.ID,
		account.UserID,
		account.Provider,
		account.RemoteID,
		account.DisplayName,
		account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting social account (%s/%s): %w",
			account.Provider, account.RemoteID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking social account insert: %w", err)
	}
	if n == 0 {
		return apperror.Conflict("social account", account.Provider+"/"+account.RemoteID)
	}

	return nil
}

// GetSocialAccount looks up the link for one external identity.
func (db *DB) GetSocialAccount(ctx context.Context, provider, remoteID string) (*model.SocialAccount, error) {
	var a model.SocialAccount

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, provider, remote_id, display_name, created_at
		 FROM social_accounts WHERE provider = ? AND remote_id = ?`,
		provider, remoteID,
	).Scan(
		&a.ID,
		&a.UserID,
		&a.Provider,
		&a.RemoteID,
		&a.DisplayName,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("social account", provider+"/"+remoteID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting social account (%s/%s): %w", provider, remoteID, err)
	}

	return &a, nil
}
