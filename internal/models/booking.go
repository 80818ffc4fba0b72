package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking is the dependent record of both merge kinds: it points at a traveller
// and carries the free-text consultant name.
type Booking struct {
	ID                    uuid.UUID `json:"id"`
	OrganizationID        uuid.UUID `json:"organization_id"`
	TravellerID           uuid.UUID `json:"traveller_id"`
	TravelConsultantText  string    `json:"travel_consultant_text"`
	AgentBookingReference string    `json:"agent_booking_reference"`
	BookingDate           time.Time `json:"booking_date"`
	TravelDate            time.Time `json:"travel_date"`
	Status                string    `json:"status"`
	Currency              string    `json:"currency"`
	TotalAmount           float64   `json:"total_amount"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ConsultantText is one distinct consultant name seen on bookings in a scope.
type ConsultantText struct {
	Text         string `json:"text"`
	BookingCount int    `json:"booking_count"`
}
