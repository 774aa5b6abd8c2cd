package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new user. ID and timestamps are assigned here.
//
// Uniqueness is enforced by the store, not by a prior read: a racing
// duplicate fails the INSERT with a constraint violation, which we map to
// apperror.ErrConflict tagged with the offending field so callers can
// either report it (registration) or retry with a new value (placeholder
// usernames).
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	// Empty email becomes NULL so UNIQUE doesn't treat two email-less
	// social users as duplicates.
	var email any
	if user.Email != "" {
		email = user.Email
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, username, email, password_hash, billing_customer_id,
		                    avatar_url, bio, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Username,
		email,
		user.PasswordHash,
		user.BillingCustomerID,
		user.AvatarURL,
		user.Bio,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: fmt.Sprintf("%s is already taken", field),
				Field:   field,
			}
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email. The email column is COLLATE
// NOCASE, so the comparison is case-insensitive at the storage layer.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email)
}

// SetBillingCustomerID persists the billing linkage exactly once.
//
// The WHERE clause only matches while the column is still NULL, so the
// first writer wins. A caller whose UPDATE matched no rows lost either to
// an earlier login or to a concurrent one — both cases resolve the same
// way, by reading back the persisted id.
func (db *DB) SetBillingCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET billing_customer_id = ?, updated_at = ?
		 WHERE id = ? AND billing_customer_id IS NULL`,
		customerID, time.Now(), userID,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: setting billing customer for user %s: %w", userID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("sqlite: checking billing update for user %s: %w", userID, err)
	}
	if n > 0 {
		return customerID, nil
	}

	var persisted sql.NullString
	err = db.conn.QueryRowContext(ctx,
		`SELECT billing_customer_id FROM users WHERE id = ?`, userID,
	).Scan(&persisted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperror.NotFound("user", userID)
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: reading billing customer for user %s: %w", userID, err)
	}
	return persisted.String, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (db *DB) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u       model.User
		email   sql.NullString
		hash    sql.NullString
		billing sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, username, email, password_hash, billing_customer_id,
		        avatar_url, bio, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Name,
		&u.Username,
		&email,
		&hash,
		&billing,
		&u.AvatarURL,
		&u.Bio,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", fmt.Sprint(arg))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user (%v): %w", arg, err)
	}

	u.Email = email.String
	if hash.Valid {
		u.PasswordHash = &hash.String
	}
	if billing.Valid {
		u.BillingCustomerID = &billing.String
	}
	return &u, nil
}

// uniqueViolation inspects a driver error for a UNIQUE constraint failure
// and reports which users column caused it. modernc.org/sqlite formats
// these as "constraint failed: UNIQUE constraint failed: users.email".
func uniqueViolation(err error) (field string, ok bool) {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return "", false
	}
	switch {
	case strings.Contains(msg, "users.email"):
		return "email", true
	case strings.Contains(msg, "users.username"):
		return "username", true
	}
	return "account", true
}
