package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"travel-backend/internal/models"
)

type MergeAuditRepository struct {
	DB DBTX
}

func NewMergeAuditRepository(db DBTX) *MergeAuditRepository {
	return &MergeAuditRepository{DB: db}
}

const mergeAuditSelect = `
	SELECT a.id, a.merge_type, a.status, a.performed_by_id, COALESCE(pu.username, ''),
	       a.organization_id, COALESCE(o.name, ''), a.primary_object_id,
	       a.merged_record_ids, a.merged_records_snapshot, a.relationship_updates,
	       a.chosen_name, a.chosen_employee_id, a.chosen_text, a.summary,
	       a.created_at, a.undone_at, a.undone_by_id, COALESCE(uu.username, '')
	FROM merge_audits a
	LEFT JOIN users pu ON pu.id = a.performed_by_id
	LEFT JOIN users uu ON uu.id = a.undone_by_id
	LEFT JOIN organizations o ON o.id = a.organization_id`

func scanMergeAudit(row interface{ Scan(dest ...any) error }) (*models.MergeAudit, error) {
	var (
		a                               models.MergeAudit
		recordIDs, snapshot, relUpdates []byte
	)
	err := row.Scan(&a.ID, &a.MergeType, &a.Status, &a.PerformedByID, &a.PerformedBy,
		&a.OrganizationID, &a.OrganizationName, &a.PrimaryObjectID,
		&recordIDs, &snapshot, &relUpdates,
		&a.ChosenName, &a.ChosenEmployeeID, &a.ChosenText, &a.Summary,
		&a.CreatedAt, &a.UndoneAt, &a.UndoneByID, &a.UndoneBy)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(recordIDs, &a.MergedRecordIDs); err != nil {
		return nil, fmt.Errorf("decode merged_record_ids of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(snapshot, &a.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(relUpdates, &a.RelationshipUpdates); err != nil {
		return nil, fmt.Errorf("decode relationship_updates of %s: %w", a.ID, err)
	}
	return &a, nil
}

// Create appends a ledger entry. ID and CreatedAt must already be set.
func (r *MergeAuditRepository) Create(ctx context.Context, a *models.MergeAudit) error {
	recordIDs, err := json.Marshal(a.MergedRecordIDs)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(a.Snapshot)
	if err != nil {
		return err
	}
	relUpdates, err := json.Marshal(a.RelationshipUpdates)
	if err != nil {
		return err
	}

	_, err = r.DB.Exec(ctx,
		`INSERT INTO merge_audits(id, merge_type, status, performed_by_id, organization_id,
                                  primary_object_id, merged_record_ids, merged_records_snapshot,
                                  relationship_updates, chosen_name, chosen_employee_id, chosen_text,
                                  summary, created_at)
         VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.MergeType, a.Status, a.PerformedByID, a.OrganizationID,
		a.PrimaryObjectID, recordIDs, snapshot, relUpdates,
		a.ChosenName, a.ChosenEmployeeID, a.ChosenText, a.Summary, a.CreatedAt)
	return err
}

func (r *MergeAuditRepository) Get(ctx context.Context, id uuid.UUID) (*models.MergeAudit, error) {
	return scanMergeAudit(r.DB.QueryRow(ctx, mergeAuditSelect+` WHERE a.id=$1`, id))
}

// GetForUpdate loads an entry and locks it, so two concurrent undos of the
// same entry serialize.
func (r *MergeAuditRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.MergeAudit, error) {
	return scanMergeAudit(r.DB.QueryRow(ctx, mergeAuditSelect+` WHERE a.id=$1 FOR UPDATE OF a`, id))
}

// List returns ledger entries newest first.
func (r *MergeAuditRepository) List(ctx context.Context, f models.MergeAuditFilter) ([]*models.MergeAudit, error) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.OrganizationIDs != nil {
		conds = append(conds, "a.organization_id = ANY("+next(f.OrganizationIDs)+")")
	}
	if f.MergeType != "" {
		conds = append(conds, "a.merge_type = "+next(f.MergeType))
	}
	if f.Status != "" {
		conds = append(conds, "a.status = "+next(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "a.summary ILIKE "+next("%"+s+"%"))
	}

	query := mergeAuditSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.created_at DESC, a.id"

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	audits := []*models.MergeAudit{}
	for rows.Next() {
		a, err := scanMergeAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// MarkUndone flips a COMPLETED entry to UNDONE. It reports false when the
// entry was not COMPLETED, leaving it untouched.
func (r *MergeAuditRepository) MarkUndone(ctx context.Context, id uuid.UUID, undoneBy *int, at time.Time) (bool, error) {
	tag, err := r.DB.Exec(ctx,
		`UPDATE merge_audits SET status=$1, undone_at=$2, undone_by_id=$3
         WHERE id=$4 AND status=$5`,
		models.MergeStatusUndone, at, undoneBy, id, models.MergeStatusCompleted)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
