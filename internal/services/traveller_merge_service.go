package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"travel-backend/internal/apperr"
	"travel-backend/internal/auth"
	"travel-backend/internal/cache"
	"travel-backend/internal/dedupe"
	"travel-backend/internal/metrics"
	"travel-backend/internal/models"
	"travel-backend/internal/timeutil"
)

// DuplicateQuery selects what a find-duplicates scan covers.
type DuplicateQuery struct {
	// OrganizationID is the requested scope; nil asks for every scope the actor may see.
	OrganizationID *uuid.UUID
	// MinSimilarity falls back to the configured default when nil.
	MinSimilarity *float64
}

type TravellerRecord struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	EmployeeID   string    `json:"employee_id"`
	Department   string    `json:"department"`
	BookingCount int       `json:"booking_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type TravellerMatch struct {
	TravellerRecord
	SimilarityScore float64 `json:"similarity_score"`
	EmployeeIDMatch bool    `json:"employee_id_match"`
}

type TravellerGroup struct {
	Primary          TravellerRecord  `json:"primary"`
	Matches          []TravellerMatch `json:"matches"`
	OrganizationID   uuid.UUID        `json:"organization_id"`
	OrganizationName string           `json:"organization_name"`
}

type TravellerDuplicates struct {
	DuplicateGroups []TravellerGroup `json:"duplicate_groups"`
	TotalGroups     int              `json:"total_groups"`
	MinSimilarity   float64          `json:"min_similarity"`
}

type TravellerMergeRequest struct {
	PrimaryID        uuid.UUID   `json:"primary_id"`
	MergeIDs         []uuid.UUID `json:"merge_ids"`
	ChosenName       string      `json:"chosen_name" validate:"max=200"`
	ChosenEmployeeID string      `json:"chosen_employee_id" validate:"max=100"`
}

// TravellerMergeService finds duplicate travellers within an organization,
// merges them into a survivor and reverses such merges from the ledger.
type TravellerMergeService struct {
	*MergeDeps
}

func NewTravellerMergeService(deps *MergeDeps) *TravellerMergeService {
	return &TravellerMergeService{MergeDeps: deps}
}

func (s *TravellerMergeService) Kind() models.MergeKind {
	return models.MergeKindTraveller
}

func travellerRecord(t *models.Traveller) TravellerRecord {
	return TravellerRecord{
		ID:           t.ID,
		FirstName:    t.FirstName,
		LastName:     t.LastName,
		Email:        t.Email,
		EmployeeID:   t.EmployeeID,
		Department:   t.Department,
		BookingCount: t.BookingCount,
		CreatedAt:    t.CreatedAt,
	}
}

// FindDuplicates groups active travellers whose names are similar or whose
// employee ids are equal, never across organizations.
func (s *TravellerMergeService) FindDuplicates(ctx context.Context, actor models.Actor, q DuplicateQuery) (*TravellerDuplicates, error) {
	minSimilarity, err := s.minSimilarity(q.MinSimilarity)
	if err != nil {
		return nil, err
	}
	scope, err := auth.ResolveScope(actor, q.OrganizationID)
	if err != nil {
		return nil, err
	}

	var orgIDs []uuid.UUID
	scopeKey := ""
	if scope != nil {
		orgIDs = []uuid.UUID{*scope}
		scopeKey = scope.String()
	}

	key := cache.DuplicatesKey(models.MergeKindTraveller, scopeKey, minSimilarity)
	var result TravellerDuplicates
	if s.cached(ctx, key, &result) {
		return &result, nil
	}

	travellers, err := s.Stores.Travellers.ListActive(ctx, orgIDs)
	if err != nil {
		return nil, apperr.FromDB(err, "travellers")
	}

	byID := make(map[string]*models.Traveller, len(travellers))
	candidates := make([]dedupe.Candidate, 0, len(travellers))
	for _, t := range travellers {
		id := t.ID.String()
		byID[id] = t
		candidates = append(candidates, dedupe.Candidate{
			ID:       id,
			Scope:    t.OrganizationID.String(),
			Key:      t.FullName(),
			ExactKey: t.EmployeeID,
			Active:   t.IsActive,
		})
	}

	start := time.Now()
	groups, err := dedupe.FindDuplicates(ctx, candidates, dedupe.Options{
		MinSimilarity: minSimilarity,
		MaxScopeSize:  s.Config.MaxScopeSize,
		Workers:       s.Config.ScanWorkers,
	})
	metrics.DuplicateScanDuration.WithLabelValues(string(models.MergeKindTraveller)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	result = TravellerDuplicates{
		DuplicateGroups: make([]TravellerGroup, 0, len(groups)),
		MinSimilarity:   minSimilarity,
	}
	for _, g := range groups {
		primary := byID[g.Primary.ID]
		group := TravellerGroup{
			Primary:          travellerRecord(primary),
			Matches:          make([]TravellerMatch, 0, len(g.Matches)),
			OrganizationID:   primary.OrganizationID,
			OrganizationName: primary.OrganizationName,
		}
		for _, m := range g.Matches {
			group.Matches = append(group.Matches, TravellerMatch{
				TravellerRecord: travellerRecord(byID[m.Candidate.ID]),
				SimilarityScore: round2(m.Similarity),
				EmployeeIDMatch: m.ExactKeyMatch,
			})
		}
		result.DuplicateGroups = append(result.DuplicateGroups, group)
	}
	result.TotalGroups = len(result.DuplicateGroups)
	metrics.DuplicateGroupsFound.WithLabelValues(string(models.MergeKindTraveller)).Observe(float64(result.TotalGroups))

	s.remember(ctx, key, &result)
	return &result, nil
}

// Merge folds the travellers in req.MergeIDs into req.PrimaryID. Their bookings
// move to the survivor, their pre-merge state goes into a ledger entry and
// the records are deleted, all in one transaction.
func (s *TravellerMergeService) Merge(ctx context.Context, actor models.Actor, req TravellerMergeRequest) (*MergeResult, error) {
	result, entry, err := s.merge(ctx, actor, req)
	metrics.MergesTotal.WithLabelValues(string(models.MergeKindTraveller), outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.committed(ctx, entry)
	s.Logger.Info("travellers merged",
		zap.String("merge_audit_id", entry.ID.String()),
		zap.String("primary_id", entry.PrimaryObjectID),
		zap.Int("merged_count", result.MergedCount),
		zap.Int("reassigned_count", result.ReassignedCount),
		zap.String("performed_by", actor.Username))
	return result, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (s *TravellerMergeService) merge(ctx context.Context, actor models.Actor, req TravellerMergeRequest) (*MergeResult, *models.MergeAudit, error) {
	if req.PrimaryID == uuid.Nil || len(req.MergeIDs) == 0 {
		return nil, nil, apperr.Validation("primary_id and merge_ids are required")
	}
	mergeIDs := uniqueIDs(req.MergeIDs)
	for _, id := range mergeIDs {
		if id == req.PrimaryID {
			return nil, nil, apperr.Validation("primary traveller %s cannot be merged into itself", id)
		}
	}

	var (
		result *MergeResult
		entry  *models.MergeAudit
	)
	err := s.Tx.WithinTx(ctx, func(st Stores) error {
		primary, err := st.Travellers.GetForUpdate(ctx, req.PrimaryID)
		if err != nil {
			return apperr.FromDB(err, "traveller")
		}
		if !auth.CanAccess(actor, &primary.OrganizationID) {
			return apperr.Permission("no access to traveller %s", primary.ID)
		}

		losers, err := st.Travellers.GetManyForUpdate(ctx, mergeIDs)
		if err != nil {
			return apperr.FromDB(err, "travellers")
		}
		if missing := missingTravellers(mergeIDs, losers); len(missing) > 0 {
			return apperr.Validation("travellers not found: %s", strings.Join(missing, ", "))
		}
		for _, t := range losers {
			if t.OrganizationID != primary.OrganizationID {
				return apperr.Validation("all travellers must be in the same organization")
			}
		}

		snapshot := make(map[uuid.UUID]models.TravellerSnapshot, len(losers))
		moved := []uuid.UUID{}
		byTraveller := make(map[uuid.UUID][]uuid.UUID, len(losers))
		mergedIDs := make([]string, 0, len(losers))
		for _, t := range losers {
			snapshot[t.ID] = t.Snapshot()
			mergedIDs = append(mergedIDs, t.ID.String())

			bookingIDs, err := st.Bookings.LockIDsByTraveller(ctx, t.ID)
			if err != nil {
				return apperr.FromDB(err, "bookings")
			}
			n, err := st.Bookings.Reassign(ctx, bookingIDs, t.ID, primary.ID)
			if err != nil {
				return apperr.FromDB(err, "bookings")
			}
			if int(n) != len(bookingIDs) {
				return apperr.Conflict("bookings of traveller %s changed during the merge, retry the request", t.ID)
			}
			byTraveller[t.ID] = bookingIDs
			moved = append(moved, bookingIDs...)
		}

		chosenName := strings.TrimSpace(req.ChosenName)
		if chosenName != "" {
			primary.SetFullName(chosenName)
		}
		chosenEmployeeID := strings.TrimSpace(req.ChosenEmployeeID)
		if chosenEmployeeID != "" {
			primary.EmployeeID = chosenEmployeeID
		}
		if err := st.Travellers.Update(ctx, primary); err != nil {
			return apperr.FromDB(err, "traveller")
		}

		orgID := primary.OrganizationID
		entry = &models.MergeAudit{
			ID:               uuid.New(),
			MergeType:        models.MergeKindTraveller,
			Status:           models.MergeStatusCompleted,
			PerformedByID:    actorID(actor),
			PerformedBy:      actor.Username,
			OrganizationID:   &orgID,
			OrganizationName: primary.OrganizationName,
			PrimaryObjectID:  primary.ID.String(),
			MergedRecordIDs:  mergedIDs,
			Snapshot:         models.MergeSnapshot{Travellers: snapshot},
			RelationshipUpdates: models.RelationshipUpdates{
				Bookings:            moved,
				BookingsByTraveller: byTraveller,
			},
			ChosenName:       chosenName,
			ChosenEmployeeID: chosenEmployeeID,
			Summary:          fmt.Sprintf("Merged %d travellers into %s", len(losers), primary.FullName()),
			CreatedAt:        timeutil.Now(),
		}
		if err := st.Audits.Create(ctx, entry); err != nil {
			return apperr.FromDB(err, "merge audit")
		}

		deleted, err := st.Travellers.DeleteMany(ctx, mergeIDs)
		if err != nil {
			return apperr.FromDB(err, "travellers")
		}
		if int(deleted) != len(mergeIDs) {
			return apperr.Conflict("travellers were removed concurrently, retry the request")
		}

		result = &MergeResult{
			Success:      true,
			MergeAuditID: entry.ID.String(),
			PrimarySummary: PrimarySummary{
				ID:         primary.ID.String(),
				Name:       primary.FullName(),
				EmployeeID: primary.EmployeeID,
			},
			MergedCount:     len(losers),
			ReassignedCount: len(moved),
		}
		return nil
	})
	if err != nil {
		return nil, nil, apperr.FromDB(err, "traveller merge")
	}
	return result, entry, nil
}

func missingTravellers(want []uuid.UUID, got []*models.Traveller) []string {
	found := make(map[uuid.UUID]bool, len(got))
	for _, t := range got {
		found[t.ID] = true
	}
	var missing []string
	for _, id := range want {
		if !found[id] {
			missing = append(missing, id.String())
		}
	}
	return missing
}

// Undo recreates the travellers a merge removed, exactly as snapshotted.
// Moved bookings stay with the survivor unless opts.RestoreRelationships is
// set, in which case each one still on the survivor goes back to its
// original traveller.
func (s *TravellerMergeService) Undo(ctx context.Context, actor models.Actor, entryID uuid.UUID, opts UndoOptions) (*UndoResult, error) {
	result, entry, err := s.undo(ctx, actor, entryID, opts)
	metrics.UndosTotal.WithLabelValues(string(models.MergeKindTraveller), outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.committed(ctx, entry)
	s.Logger.Info("traveller merge undone",
		zap.String("merge_audit_id", entry.ID.String()),
		zap.Int("restored_count", result.RestoredCount),
		zap.Int("relinked_count", result.RelinkedCount),
		zap.String("undone_by", actor.Username))
	return result, nil
}

func (s *TravellerMergeService) undo(ctx context.Context, actor models.Actor, entryID uuid.UUID, opts UndoOptions) (*UndoResult, *models.MergeAudit, error) {
	var (
		result *UndoResult
		entry  *models.MergeAudit
	)
	err := s.Tx.WithinTx(ctx, func(st Stores) error {
		var err error
		entry, err = st.Audits.GetForUpdate(ctx, entryID)
		if err != nil {
			return apperr.FromDB(err, "merge audit")
		}
		if entry.MergeType != models.MergeKindTraveller {
			return apperr.Validation("merge audit %s is not a traveller merge", entry.ID)
		}
		if entry.Status == models.MergeStatusUndone {
			return apperr.Validation("this merge has already been undone")
		}
		if !auth.CanAccess(actor, entry.OrganizationID) {
			return apperr.Permission("no access to merge audit %s", entry.ID)
		}

		ids := make([]uuid.UUID, 0, len(entry.Snapshot.Travellers))
		for id := range entry.Snapshot.Travellers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

		for _, id := range ids {
			if err := st.Travellers.Insert(ctx, entry.Snapshot.Travellers[id].Traveller()); err != nil {
				return apperr.FromDB(err, "traveller")
			}
		}

		relinked := 0
		if opts.RestoreRelationships {
			survivor, err := uuid.Parse(entry.PrimaryObjectID)
			if err != nil {
				return apperr.Internal(err, "merge audit %s has a malformed primary id", entry.ID)
			}
			for _, id := range ids {
				n, err := st.Bookings.Reassign(ctx, entry.RelationshipUpdates.BookingsByTraveller[id], survivor, id)
				if err != nil {
					return apperr.FromDB(err, "bookings")
				}
				relinked += int(n)
			}
		}

		now := timeutil.Now()
		ok, err := st.Audits.MarkUndone(ctx, entry.ID, actorID(actor), now)
		if err != nil {
			return apperr.FromDB(err, "merge audit")
		}
		if !ok {
			return apperr.Conflict("merge audit %s changed during the undo, retry the request", entry.ID)
		}
		entry.Status = models.MergeStatusUndone
		entry.UndoneAt = &now
		entry.UndoneByID = actorID(actor)
		entry.UndoneBy = actor.Username

		result = &UndoResult{
			Success:       true,
			RestoredCount: len(ids),
			RelinkedCount: relinked,
			Message:       fmt.Sprintf("Merge undone successfully. %d travellers restored.", len(ids)),
		}
		return nil
	})
	if err != nil {
		return nil, nil, apperr.FromDB(err, "traveller merge")
	}
	return result, entry, nil
}
