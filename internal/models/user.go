package models

import (
	"time"
)

// UserRole distinguishes admin pages from user pages
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// User is a connected session that periodically reports activity
type User struct {
	// ID is derived from the registration time plus a random suffix
	ID string `json:"id"`

	// LastSeen is refreshed on every activity update
	LastSeen time.Time `json:"lastSeen"`

	// Active is set when the user registers
	Active bool `json:"active"`

	// Name is the display name
	Name string `json:"name,omitempty"`

	// Role is admin or user
	Role UserRole `json:"role,omitempty"`

	// Page is the page or client the session is on
	Page string `json:"page,omitempty"`

	// Meta carries any extra caller-supplied fields
	Meta map[string]string `json:"meta,omitempty"`
}
