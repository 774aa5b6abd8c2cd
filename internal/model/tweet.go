package model

import "time"

// Tweet is a short user-owned post. The owning user is always explicit —
// handlers pass the acting user's ID down from the request context, never
// from ambient state.
type Tweet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
