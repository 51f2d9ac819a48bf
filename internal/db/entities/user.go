package entities

import "time"

// User is the external identity. The auth collaborator owns these rows;
// the feed only reads them (tests and provisioning create them directly).
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Author is the compact user shape embedded in posts, comments and leaderboards
type Author struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
