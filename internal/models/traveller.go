package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Traveller struct {
	ID               uuid.UUID `json:"id"`
	OrganizationID   uuid.UUID `json:"organization_id"`
	OrganizationName string    `json:"organization_name,omitempty"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email"`
	EmployeeID       string    `json:"employee_id"`
	Department       string    `json:"department"`
	CostCenter       string    `json:"cost_center"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// BookingCount is filled by duplicate scans only.
	BookingCount int `json:"booking_count"`
}

// FullName is the comparison key used by duplicate detection.
func (t *Traveller) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// SetFullName splits name at the first space into first and last name.
func (t *Traveller) SetFullName(name string) {
	parts := strings.SplitN(strings.TrimSpace(name), " ", 2)
	t.FirstName = parts[0]
	t.LastName = ""
	if len(parts) > 1 {
		t.LastName = strings.TrimSpace(parts[1])
	}
}

// Snapshot captures every persisted field of the traveller.
func (t *Traveller) Snapshot() TravellerSnapshot {
	return TravellerSnapshot{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		FirstName:      t.FirstName,
		LastName:       t.LastName,
		Email:          t.Email,
		EmployeeID:     t.EmployeeID,
		Department:     t.Department,
		CostCenter:     t.CostCenter,
		IsActive:       t.IsActive,
		CreatedAt:      t.CreatedAt,
	}
}
