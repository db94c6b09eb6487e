package auth

import "errors"

// UserRepository defines operations for user persistence and retrieval.
// The in-memory implementation covers tests and single-instance servers,
// MongoDB and MariaDB back the same interface for deployments with a real
// database. Which one is used is decided by configuration at startup.
type UserRepository interface {
	// GetUserByUsername returns a user by username (case-insensitive). If the user
	// is not found, (nil, ErrUserNotFound) should be returned.
	GetUserByUsername(username string) (*User, error)

	// GetUserByID returns a user by ID. If the user is not found,
	// (nil, ErrUserNotFound) should be returned.
	GetUserByID(id uint64) (*User, error)

	// CreateUser creates a new user with the supplied data and returns the stored
	// user instance. Caller is expected to pass a bcrypt-hashed password.
	// Implementations must enforce unique usernames and return ErrUserExists on
	// conflict.
	CreateUser(username string, passwordHash string, isAdmin bool) (*User, error)

	// ValidateCredentials checks username and password, updates LastLogin and
	// returns the user on success. Wrong password and unknown user both map to
	// ErrInvalidCredentials so callers cannot distinguish the two.
	ValidateCredentials(username, password string) (*User, error)

	// Stats returns aggregate account counters for the admin status endpoint.
	Stats() (UserStats, error)
}

// Domain-level errors returned by the repository.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
