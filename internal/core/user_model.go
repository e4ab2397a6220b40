package core

import (
	"context"
	"time"
)

// Staff roles. Role checks happen at the application service boundary.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleReceptionist = "receptionist"
	RoleAssistant    = "assistant"
)

// User represents a clinic staff member who can sign in.
type User struct {
	ID           int
	Username     string
	Email        *string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// CreateUserInput holds the fields required to create a staff account.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// UserService provides staff account lookup and credential checks.
type UserService interface {
	// Authenticate verifies a username and password against the stored
	// bcrypt hash and returns the user on success.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// CreateUser creates a staff account with a hashed password.
	CreateUser(ctx context.Context, input CreateUserInput) (*User, error)

	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)
}
