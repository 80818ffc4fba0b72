package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrgTypeAgent    = "AGENT"
	OrgTypeCustomer = "CUSTOMER"
)

// Organization is a tenant: a travel agent or one of its customer companies.
type Organization struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	OrgType       string     `json:"org_type"`
	Code          string     `json:"code"`
	TravelAgentID *uuid.UUID `json:"travel_agent_id,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
