package auth

import "time"

// User represents a stored account. PasswordHash is a one-way bcrypt hash
// and is never empty for a persisted account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credentials carries the transient fields of a single login attempt.
// Never persisted.
type Credentials struct {
	Email    string
	Password string
	Remember bool
}

// Registration carries the transient fields of a single sign-up request.
type Registration struct {
	Username string
	Email    string
	Password string
}
