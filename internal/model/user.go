package model

import "time"

const (
	RoleAdmin = "admin"
	RoleHR    = "hr"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// Actor is the staff identity behind a decision or inbox action.
type Actor struct {
	ID    string
	Name  string
	Email string
	Role  string
}
