package auth

import "time"

// User represents a player/administrator account.
type User struct {
	ID           uint64    // Unique immutable identifier
	Username     string    // Unique username (case-insensitive)
	PasswordHash string    // bcrypt hashed password (60 chars)
	CreatedAt    time.Time // Account creation timestamp (server time)
	LastLogin    time.Time // Last successful login
	IsAdmin      bool      // Administrative privileges flag
}

// UserStats aggregates account counters for the admin status endpoint.
type UserStats struct {
	Total         int `json:"total"`           // Total registered accounts
	Admins        int `json:"admins"`          // Accounts with admin flag
	ActiveLast24h int `json:"active_last_24h"` // Accounts with login in the last 24 hours
}
