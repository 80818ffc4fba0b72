package repositories

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"travel-backend/internal/models"
)

type BookingRepository struct {
	DB DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{DB: db}
}

func collectIDs(ctx context.Context, db DBTX, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scopeClause appends an organization filter when orgIDs is non-nil.
func scopeClause(query string, args []any, orgIDs []uuid.UUID) (string, []any) {
	if orgIDs == nil {
		return query, args
	}
	args = append(args, orgIDs)
	return query + ` AND organization_id = ANY($` + strconv.Itoa(len(args)) + `)`, args
}

// LockIDsByTraveller returns and locks the bookings owned by a traveller.
func (r *BookingRepository) LockIDsByTraveller(ctx context.Context, travellerID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, r.DB,
		`SELECT id FROM bookings WHERE traveller_id=$1 ORDER BY id FOR UPDATE`, travellerID)
}

// Reassign points the given bookings at a new traveller, touching only rows
// still owned by from.
func (r *BookingRepository) Reassign(ctx context.Context, ids []uuid.UUID, from, to uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.DB.Exec(ctx,
		`UPDATE bookings SET traveller_id=$1, updated_at=CURRENT_TIMESTAMP
         WHERE id = ANY($2) AND traveller_id=$3`, to, ids, from)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DistinctConsultantTexts lists the non-blank consultant names in scope with
// how many bookings carry each. A nil orgIDs spans every organization.
func (r *BookingRepository) DistinctConsultantTexts(ctx context.Context, orgIDs []uuid.UUID) ([]models.ConsultantText, error) {
	query, args := scopeClause(`
		SELECT travel_consultant_text, COUNT(*)
		FROM bookings
		WHERE travel_consultant_text <> ''`, nil, orgIDs)
	query += `
		GROUP BY travel_consultant_text
		ORDER BY travel_consultant_text`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []models.ConsultantText
	for rows.Next() {
		var ct models.ConsultantText
		if err := rows.Scan(&ct.Text, &ct.BookingCount); err != nil {
			return nil, err
		}
		texts = append(texts, ct)
	}
	return texts, rows.Err()
}

// LockIDsByConsultantText returns and locks every booking in scope whose
// consultant text equals text exactly.
func (r *BookingRepository) LockIDsByConsultantText(ctx context.Context, orgIDs []uuid.UUID, text string) ([]uuid.UUID, error) {
	query, args := scopeClause(
		`SELECT id FROM bookings WHERE travel_consultant_text=$1`, []any{text}, orgIDs)
	return collectIDs(ctx, r.DB, query+` ORDER BY id FOR UPDATE`, args...)
}

// ReplaceConsultantText rewrites the consultant text of the given bookings
// from one value to another, skipping any whose text no longer equals from.
func (r *BookingRepository) ReplaceConsultantText(ctx context.Context, ids []uuid.UUID, from, to string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.DB.Exec(ctx,
		`UPDATE bookings SET travel_consultant_text=$1, updated_at=CURRENT_TIMESTAMP
         WHERE id = ANY($2) AND travel_consultant_text=$3`, to, ids, from)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
