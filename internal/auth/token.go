// Package auth — opaque bearer tokens.
//
// Tokens here are NOT JWTs. They carry no claims and cannot be validated
// offline: each one is 32 bytes of crypto/rand entropy whose SHA-256
// digest maps to a user in the token store. That trade is deliberate —
// a stored token can be revoked (logout revokes every live token for the
// user, effective immediately), which a signed stateless token cannot.
//
// The plaintext is returned exactly once, at issuance. Only the digest is
// persisted, so a leaked database does not leak usable credentials.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/sakif/microblog/internal/repository"
)

// tokenBytes is the entropy per token. 32 bytes (256 bits) is far beyond
// brute-force reach and hex-encodes to a 64-character credential.
const tokenBytes = 32

// TokenService mints, checks, and revokes opaque bearer tokens.
type TokenService struct {
	tokens repository.TokenRepository
}

// NewTokenService creates a TokenService backed by the given store.
func NewTokenService(tokens repository.TokenRepository) *TokenService {
	return &TokenService{tokens: tokens}
}

// Issue mints a fresh token bound to userID and returns its plaintext.
// Every successful authentication gets a new token — tokens are never
// reused across sessions, so multiple live sessions are multiple rows.
func (s *TokenService) Issue(ctx context.Context, userID string) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("auth: generating token: %w", err)
	}

	plaintext := hex.EncodeToString(raw)
	if err := s.tokens.InsertToken(ctx, userID, digest(plaintext)); err != nil {
		return "", fmt.Errorf("auth: storing token for user %s: %w", userID, err)
	}

	return plaintext, nil
}

// IsValid resolves a presented token back to its owning user ID.
// Unknown and revoked tokens fail identically.
func (s *TokenService) IsValid(ctx context.Context, plaintext string) (string, error) {
	userID, err := s.tokens.FindUserByTokenDigest(ctx, digest(plaintext))
	if err != nil {
		return "", fmt.Errorf("auth: validating token: %w", err)
	}
	return userID, nil
}

// RevokeAll invalidates every live token for the user. Tokens issued
// after this call are unaffected.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeAllTokens(ctx, userID); err != nil {
		return fmt.Errorf("auth: revoking tokens for user %s: %w", userID, err)
	}
	return nil
}

// digest returns the hex SHA-256 of the plaintext token — the only form
// that ever touches storage.
func digest(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
