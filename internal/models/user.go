package models

import "time"

// User is an account holder. Email is unique.
type User struct {
	ID           int64      `db:"id"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password"`
	IsActive     bool       `db:"is_active"`
	IsVerified   bool       `db:"is_verified"`
	VerifiedAt   *time.Time `db:"verified_at"`
	RegisteredAt time.Time  `db:"registered_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}
