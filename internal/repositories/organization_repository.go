package repositories

import (
	"context"

	"github.com/google/uuid"

	"travel-backend/internal/models"
)

type OrganizationRepository struct {
	DB DBTX
}

func NewOrganizationRepository(db DBTX) *OrganizationRepository {
	return &OrganizationRepository{DB: db}
}

func (r *OrganizationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var o models.Organization
	err := r.DB.QueryRow(ctx,
		`SELECT id, name, org_type, code, travel_agent_id, is_active, created_at, updated_at
         FROM organizations WHERE id=$1`, id,
	).Scan(&o.ID, &o.Name, &o.OrgType, &o.Code, &o.TravelAgentID, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListCustomerIDs returns the customer organizations serviced by a travel agent.
func (r *OrganizationRepository) ListCustomerIDs(ctx context.Context, agentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id FROM organizations WHERE travel_agent_id=$1 ORDER BY id`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
