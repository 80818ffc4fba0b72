package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"travel-backend/internal/models"
)

type TravellerRepository struct {
	DB DBTX
}

func NewTravellerRepository(db DBTX) *TravellerRepository {
	return &TravellerRepository{DB: db}
}

const travellerColumns = `t.id, t.organization_id, COALESCE(o.name, '') AS organization_name,
            t.first_name, t.last_name, t.email, t.employee_id, t.department, t.cost_center,
            t.is_active, t.created_at, t.updated_at`

func scanTraveller(row interface{ Scan(dest ...any) error }, extra ...any) (*models.Traveller, error) {
	var t models.Traveller
	dest := []any{&t.ID, &t.OrganizationID, &t.OrganizationName,
		&t.FirstName, &t.LastName, &t.Email, &t.EmployeeID, &t.Department, &t.CostCenter,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListActive returns active travellers with their booking counts, ordered by
// organization then name. A nil orgIDs lists every organization.
func (r *TravellerRepository) ListActive(ctx context.Context, orgIDs []uuid.UUID) ([]*models.Traveller, error) {
	query := `
		SELECT ` + travellerColumns + `, COUNT(b.id) AS booking_count
		FROM travellers t
		JOIN organizations o ON o.id = t.organization_id
		LEFT JOIN bookings b ON b.traveller_id = t.id
		WHERE t.is_active = TRUE`
	args := []any{}
	if orgIDs != nil {
		query += ` AND t.organization_id = ANY($1)`
		args = append(args, orgIDs)
	}
	query += `
		GROUP BY t.id, o.name
		ORDER BY t.organization_id, t.last_name, t.first_name`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var travellers []*models.Traveller
	for rows.Next() {
		var count int
		t, err := scanTraveller(rows, &count)
		if err != nil {
			return nil, err
		}
		t.BookingCount = count
		travellers = append(travellers, t)
	}
	return travellers, rows.Err()
}

// GetForUpdate loads a traveller and locks its row until the transaction ends.
func (r *TravellerRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Traveller, error) {
	return scanTraveller(r.DB.QueryRow(ctx, `
		SELECT `+travellerColumns+`
		FROM travellers t
		JOIN organizations o ON o.id = t.organization_id
		WHERE t.id = $1
		FOR UPDATE OF t`, id))
}

// GetManyForUpdate loads and locks the given travellers in id order, so two
// merges over overlapping sets take their locks in the same sequence.
// Missing ids are simply absent from the result.
func (r *TravellerRepository) GetManyForUpdate(ctx context.Context, ids []uuid.UUID) ([]*models.Traveller, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+travellerColumns+`
		FROM travellers t
		JOIN organizations o ON o.id = t.organization_id
		WHERE t.id = ANY($1)
		ORDER BY t.id
		FOR UPDATE OF t`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var travellers []*models.Traveller
	for rows.Next() {
		t, err := scanTraveller(rows)
		if err != nil {
			return nil, err
		}
		travellers = append(travellers, t)
	}
	return travellers, rows.Err()
}

func (r *TravellerRepository) Update(ctx context.Context, t *models.Traveller) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE travellers SET first_name=$1, last_name=$2, email=$3, employee_id=$4,
                department=$5, cost_center=$6, is_active=$7, updated_at=CURRENT_TIMESTAMP
         WHERE id=$8`,
		t.FirstName, t.LastName, t.Email, t.EmployeeID, t.Department, t.CostCenter, t.IsActive, t.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("traveller %s vanished during update", t.ID)
	}
	return nil
}

// Insert writes a traveller with a caller-chosen id and created_at, as undo needs.
func (r *TravellerRepository) Insert(ctx context.Context, t *models.Traveller) error {
	_, err := r.DB.Exec(ctx,
		`INSERT INTO travellers(id, organization_id, first_name, last_name, email, employee_id,
                                department, cost_center, is_active, created_at, updated_at)
         VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP)`,
		t.ID, t.OrganizationID, t.FirstName, t.LastName, t.Email, t.EmployeeID,
		t.Department, t.CostCenter, t.IsActive, t.CreatedAt)
	return err
}

// DeleteMany removes travellers and reports how many rows went.
func (r *TravellerRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM travellers WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
