package models

import (
	"time"

	"github.com/google/uuid"
)

// User types. Only ADMIN is a system-level (unscoped) actor.
const (
	UserTypeAdmin         = "ADMIN"
	UserTypeAgentAdmin    = "AGENT_ADMIN"
	UserTypeAgentUser     = "AGENT_USER"
	UserTypeCustomerAdmin = "CUSTOMER_ADMIN"
	UserTypeCustomerRisk  = "CUSTOMER_RISK"
	UserTypeCustomer      = "CUSTOMER"
)

// ElevatedUserTypes may use the data-management endpoints.
var ElevatedUserTypes = []string{UserTypeAdmin, UserTypeAgentAdmin, UserTypeCustomerAdmin}

type User struct {
	ID             int        `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"` // Never expose in JSON
	UserType       string     `json:"user_type"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Actor is the resolved identity behind a request, as handed to the merge engine.
type Actor struct {
	UserID         int
	Username       string
	UserType       string
	OrganizationID *uuid.UUID
}

// IsSystem reports whether the actor may act across every organization.
func (a Actor) IsSystem() bool {
	return a.UserType == UserTypeAdmin
}

// ActorFromUser builds the Actor for an authenticated user.
func ActorFromUser(u *User) Actor {
	return Actor{
		UserID:         u.ID,
		Username:       u.Username,
		UserType:       u.UserType,
		OrganizationID: u.OrganizationID,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse represents the response after successful authentication
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
