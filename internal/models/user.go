package models

// User represents a registered account. Users own groups.
type User struct {
	// ID is the unique identifier for the user.
	ID int64

	// Email is the login address (unique, lower-cased).
	Email string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// IsActive is false for disabled accounts.
	IsActive bool

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64
}
