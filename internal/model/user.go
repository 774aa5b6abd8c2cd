// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// A user can be created two ways: explicit registration with an
// email/password, or a first social login through an identity provider.
// That is why PasswordHash is a pointer — a purely social user has no
// password at all, which is distinct from an empty one.
//
// BillingCustomerID references this user's customer record in the external
// billing system. It is nil until the first successful authentication
// provisions one, and once set it is never overwritten.
type User struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	PasswordHash      *string    `json:"-"` // never serialized
	BillingCustomerID *string    `json:"billingCustomerId,omitempty"`
	AvatarURL         string     `json:"avatarUrl,omitempty"`
	Bio               string     `json:"bio,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}
