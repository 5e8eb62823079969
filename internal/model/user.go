package model

import "time"

// User is an account in the rental marketplace.  Customers create
// bookings, partners own vehicles and confirm or reject bookings for
// them, admins can do both.  Passwords are stored as bcrypt hashes.
//
// Fields:
//
//	ID           – primary key identifier.
//	Email        – unique login identifier, lowercased.
//	PasswordHash – bcrypt hash of the password.
//	Role         – closed role enumeration, see Role.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
