package models

import (
	"time"

	"github.com/google/uuid"
)

// MergeKind tags what a ledger entry merged.
type MergeKind string

const (
	MergeKindTraveller  MergeKind = "TRAVELLER"
	MergeKindConsultant MergeKind = "CONSULTANT"
)

func (k MergeKind) Valid() bool {
	return k == MergeKindTraveller || k == MergeKindConsultant
}

// Display is the human label of the kind.
func (k MergeKind) Display() string {
	switch k {
	case MergeKindTraveller:
		return "Traveller Merge"
	case MergeKindConsultant:
		return "Consultant Name Standardization"
	}
	return string(k)
}

type MergeStatus string

const (
	MergeStatusCompleted MergeStatus = "COMPLETED"
	MergeStatusUndone    MergeStatus = "UNDONE"
)

func (s MergeStatus) Valid() bool {
	return s == MergeStatusCompleted || s == MergeStatusUndone
}

// TravellerSnapshot is the full pre-merge state of a merged-away traveller.
type TravellerSnapshot struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	EmployeeID     string    `json:"employee_id"`
	Department     string    `json:"department"`
	CostCenter     string    `json:"cost_center"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Traveller rebuilds an active traveller from the snapshot.
func (s TravellerSnapshot) Traveller() *Traveller {
	return &Traveller{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		FirstName:      s.FirstName,
		LastName:       s.LastName,
		Email:          s.Email,
		EmployeeID:     s.EmployeeID,
		Department:     s.Department,
		CostCenter:     s.CostCenter,
		IsActive:       true,
		CreatedAt:      s.CreatedAt,
	}
}

// ConsultantTextSnapshot records how many bookings carried a text before it was
// standardized, plus a bounded sample of their ids. Only sampled bookings can be
// restored by undo.
type ConsultantTextSnapshot struct {
	Text         string      `json:"text"`
	BookingCount int         `json:"booking_count"`
	SampleIDs    []uuid.UUID `json:"sample_booking_ids"`
	Truncated    bool        `json:"truncated"`
}

// MergeSnapshot holds one shape per merge kind; only the kind's own field is set.
type MergeSnapshot struct {
	Travellers      map[uuid.UUID]TravellerSnapshot   `json:"travellers,omitempty"`
	ConsultantTexts map[string]ConsultantTextSnapshot `json:"consultant_texts,omitempty"`
}

// RelationshipUpdates records which dependents a merge repointed.
type RelationshipUpdates struct {
	// Bookings is every booking moved to the survivor. Consultant merges
	// leave it empty and keep only a count; their snapshot holds samples.
	Bookings []uuid.UUID `json:"bookings"`
	// BookingsByTraveller keeps the original owner of each moved booking.
	BookingsByTraveller  map[uuid.UUID][]uuid.UUID `json:"bookings_by_traveller,omitempty"`
	UpdatedCount         int                       `json:"updated_count,omitempty"`
	FinalText            string                    `json:"final_text,omitempty"`
	ScopeOrganizationIDs []uuid.UUID               `json:"scope_organization_ids,omitempty"`
}

// MergeAudit is one ledger entry.
type MergeAudit struct {
	ID                  uuid.UUID           `json:"id"`
	MergeType           MergeKind           `json:"merge_type"`
	Status              MergeStatus         `json:"status"`
	PerformedByID       *int                `json:"performed_by_id,omitempty"`
	PerformedBy         string              `json:"performed_by,omitempty"`
	OrganizationID      *uuid.UUID          `json:"organization_id,omitempty"`
	OrganizationName    string              `json:"organization_name,omitempty"`
	PrimaryObjectID     string              `json:"primary_object_id"`
	MergedRecordIDs     []string            `json:"merged_record_ids"`
	Snapshot            MergeSnapshot       `json:"merged_records_snapshot"`
	RelationshipUpdates RelationshipUpdates `json:"relationship_updates"`
	ChosenName          string              `json:"chosen_name"`
	ChosenEmployeeID    string              `json:"chosen_employee_id"`
	ChosenText          string              `json:"chosen_text"`
	Summary             string              `json:"summary"`
	CreatedAt           time.Time           `json:"created_at"`
	UndoneAt            *time.Time          `json:"undone_at,omitempty"`
	UndoneByID          *int                `json:"undone_by_id,omitempty"`
	UndoneBy            string              `json:"undone_by,omitempty"`
}

// MergeAuditFilter narrows ledger listings. A nil OrganizationIDs means every scope.
type MergeAuditFilter struct {
	OrganizationIDs []uuid.UUID
	MergeType       MergeKind
	Status          MergeStatus
	Search          string
}
