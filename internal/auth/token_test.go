package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/microblog/internal/apperror"
)

// fakeTokenRepo is an in-memory repository.TokenRepository. It stores
// digests the way the real store does, so the tests exercise the full
// plaintext → digest → user round trip.
type fakeTokenRepo struct {
	rows      map[string]tokenRow // keyed by digest
	insertErr error
}

type tokenRow struct {
	userID  string
	revoked bool
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{rows: make(map[string]tokenRow)}
}

func (f *fakeTokenRepo) InsertToken(_ context.Context, userID, digest string) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows[digest] = tokenRow{userID: userID}
	return nil
}

func (f *fakeTokenRepo) FindUserByTokenDigest(_ context.Context, digest string) (string, error) {
	row, ok := f.rows[digest]
	if !ok || row.revoked {
		return "", apperror.NotFound("token", "presented value")
	}
	return row.userID, nil
}

func (f *fakeTokenRepo) RevokeAllTokens(_ context.Context, userID string) error {
	for d, row := range f.rows {
		if row.userID == userID && !row.revoked {
			row.revoked = true
			f.rows[d] = row
		}
	}
	return nil
}

func TestIssueAndIsValid(t *testing.T) {
	repo := newFakeTokenRepo()
	ts := NewTokenService(repo)

	token, err := ts.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if len(token) != tokenBytes*2 {
		t.Errorf("token length = %d, want %d hex chars", len(token), tokenBytes*2)
	}

	userID, err := ts.IsValid(context.Background(), token)
	if err != nil {
		t.Fatalf("IsValid() error = %v", err)
	}
	if userID != "user-1" {
		t.Errorf("IsValid() = %q, want %q", userID, "user-1")
	}
}

func TestIssueNeverReusesTokens(t *testing.T) {
	repo := newFakeTokenRepo()
	ts := NewTokenService(repo)

	t1, err := ts.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	t2, err := ts.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if t1 == t2 {
		t.Error("two logins must produce two distinct tokens")
	}
	// Both sessions stay live at once.
	if _, err := ts.IsValid(context.Background(), t1); err != nil {
		t.Errorf("first token invalid: %v", err)
	}
	if _, err := ts.IsValid(context.Background(), t2); err != nil {
		t.Errorf("second token invalid: %v", err)
	}
}

func TestIsValidUnknownToken(t *testing.T) {
	ts := NewTokenService(newFakeTokenRepo())

	if _, err := ts.IsValid(context.Background(), "never-issued"); err == nil {
		t.Error("IsValid() should fail for an unknown token")
	}
}

func TestPlaintextIsNotStored(t *testing.T) {
	repo := newFakeTokenRepo()
	ts := NewTokenService(repo)

	token, err := ts.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, ok := repo.rows[token]; ok {
		t.Error("the plaintext token must never reach the store")
	}
}

func TestRevokeAll(t *testing.T) {
	repo := newFakeTokenRepo()
	ts := NewTokenService(repo)
	ctx := context.Background()

	before1, _ := ts.Issue(ctx, "user-1")
	before2, _ := ts.Issue(ctx, "user-1")
	otherUser, _ := ts.Issue(ctx, "user-2")

	if err := ts.RevokeAll(ctx, "user-1"); err != nil {
		t.Fatalf("RevokeAll() error = %v", err)
	}

	after, _ := ts.Issue(ctx, "user-1")

	// Every token issued before the revoke is dead.
	for _, tok := range []string{before1, before2} {
		if _, err := ts.IsValid(ctx, tok); err == nil {
			t.Error("pre-revoke token should be invalid")
		}
	}
	// Tokens issued after, and other users' tokens, are untouched.
	if _, err := ts.IsValid(ctx, after); err != nil {
		t.Errorf("post-revoke token should be valid: %v", err)
	}
	if _, err := ts.IsValid(ctx, otherUser); err != nil {
		t.Errorf("other user's token should be valid: %v", err)
	}
}

func TestIssueStoreError(t *testing.T) {
	repo := newFakeTokenRepo()
	repo.insertErr = errors.New("disk full")
	ts := NewTokenService(repo)

	if _, err := ts.Issue(context.Background(), "user-1"); err == nil {
		t.Error("Issue() should propagate store errors")
	}
}
