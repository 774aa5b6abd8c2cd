package model

import "time"

// Provider names accepted by the identity resolver. Anything outside this
// set is rejected before a single network call is made.
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
	ProviderGitHub   = "github"
	ProviderTwitter  = "twitter"
)

// KnownProvider reports whether name is on the provider allow-list.
func KnownProvider(name string) bool {
	switch name {
	case ProviderGoogle, ProviderFacebook, ProviderGitHub, ProviderTwitter:
		return true
	}
	return false
}

// SocialAccount links a local user to one external identity.
//
// The pair (Provider, RemoteID) identifies exactly one external identity
// and resolves to exactly one user — the storage layer enforces this with
// a unique constraint. A user may hold several rows, one per provider.
type SocialAccount struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Provider    string    `json:"provider"`
	RemoteID    string    `json:"remoteId"` // provider-scoped subject identifier
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}
