package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"travel-backend/internal/apperr"
	"travel-backend/internal/auth"
	"travel-backend/internal/models"
)

// Undoer reverses ledger entries of one merge kind.
type Undoer interface {
	Kind() models.MergeKind
	Undo(ctx context.Context, actor models.Actor, entryID uuid.UUID, opts UndoOptions) (*UndoResult, error)
}

type AuditQuery struct {
	OrganizationID *uuid.UUID
	MergeType      models.MergeKind
	Status         models.MergeStatus
	Search         string
}

type AuditSummary struct {
	ID               uuid.UUID          `json:"id"`
	MergeType        models.MergeKind   `json:"merge_type"`
	MergeTypeDisplay string             `json:"merge_type_display"`
	Status           models.MergeStatus `json:"status"`
	PerformedBy      string             `json:"performed_by"`
	Organization     string             `json:"organization"`
	Summary          string             `json:"summary"`
	ChosenName       string             `json:"chosen_name"`
	ChosenEmployeeID string             `json:"chosen_employee_id"`
	ChosenText       string             `json:"chosen_text"`
	MergedCount      int                `json:"merged_count"`
	CreatedAt        time.Time          `json:"created_at"`
	UndoneAt         *time.Time         `json:"undone_at"`
	UndoneBy         string             `json:"undone_by"`
}

type AuditList struct {
	Results []AuditSummary `json:"results"`
	Count   int            `json:"count"`
}

type AuditDetail struct {
	*models.MergeAudit
	MergeTypeDisplay string `json:"merge_type_display"`
	MergedCount      int    `json:"merged_count"`
}

// MergeAuditService reads the ledger and routes undo requests to the engine
// owning the entry's kind.
type MergeAuditService struct {
	Audits  MergeAuditStore
	undoers map[models.MergeKind]Undoer
}

func NewMergeAuditService(audits MergeAuditStore, undoers ...Undoer) *MergeAuditService {
	s := &MergeAuditService{Audits: audits, undoers: make(map[models.MergeKind]Undoer, len(undoers))}
	for _, u := range undoers {
		s.undoers[u.Kind()] = u
	}
	return s
}

// List returns ledger entries newest first. Scoped actors only ever see
// their own organization's entries.
func (s *MergeAuditService) List(ctx context.Context, actor models.Actor, q AuditQuery) (*AuditList, error) {
	if q.MergeType != "" && !q.MergeType.Valid() {
		return nil, apperr.Validation("unknown merge_type %q", q.MergeType)
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", q.Status)
	}
	scope, err := auth.ResolveScope(actor, q.OrganizationID)
	if err != nil {
		return nil, err
	}

	filter := models.MergeAuditFilter{MergeType: q.MergeType, Status: q.Status, Search: q.Search}
	if scope != nil {
		filter.OrganizationIDs = []uuid.UUID{*scope}
	}
	audits, err := s.Audits.List(ctx, filter)
	if err != nil {
		return nil, apperr.FromDB(err, "merge audits")
	}

	list := &AuditList{Results: make([]AuditSummary, 0, len(audits))}
	for _, a := range audits {
		list.Results = append(list.Results, AuditSummary{
			ID:               a.ID,
			MergeType:        a.MergeType,
			MergeTypeDisplay: a.MergeType.Display(),
			Status:           a.Status,
			PerformedBy:      a.PerformedBy,
			Organization:     a.OrganizationName,
			Summary:          a.Summary,
			ChosenName:       a.ChosenName,
			ChosenEmployeeID: a.ChosenEmployeeID,
			ChosenText:       a.ChosenText,
			MergedCount:      len(a.MergedRecordIDs),
			CreatedAt:        a.CreatedAt,
			UndoneAt:         a.UndoneAt,
			UndoneBy:         a.UndoneBy,
		})
	}
	list.Count = len(list.Results)
	return list, nil
}

// Get returns one entry with its snapshot. Entries outside the actor's scope
// read as not found.
func (s *MergeAuditService) Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*AuditDetail, error) {
	a, err := s.Audits.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "merge audit")
	}
	if !auth.CanAccess(actor, a.OrganizationID) {
		return nil, apperr.NotFound("merge audit not found")
	}
	return &AuditDetail{
		MergeAudit:       a,
		MergeTypeDisplay: a.MergeType.Display(),
		MergedCount:      len(a.MergedRecordIDs),
	}, nil
}

// Undo reverses an entry of any kind.
func (s *MergeAuditService) Undo(ctx context.Context, actor models.Actor, id uuid.UUID, opts UndoOptions) (*UndoResult, error) {
	a, err := s.Audits.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "merge audit")
	}
	u, ok := s.undoers[a.MergeType]
	if !ok {
		return nil, apperr.Internal(nil, "no undo registered for %s merges", a.MergeType)
	}
	return u.Undo(ctx, actor, id, opts)
}
