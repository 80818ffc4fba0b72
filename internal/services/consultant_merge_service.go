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

// All consultant texts in a resolved scope form one comparison pool.
const textScope = "texts"

type TextMatch struct {
	models.ConsultantText
	SimilarityScore float64 `json:"similarity_score"`
}

type TextGroup struct {
	Primary models.ConsultantText `json:"primary"`
	Matches []TextMatch           `json:"matches"`
}

type ConsultantDuplicates struct {
	DuplicateGroups []TextGroup `json:"duplicate_groups"`
	TotalGroups     int         `json:"total_groups"`
	MinSimilarity   float64     `json:"min_similarity"`
	// OrganizationIDs lists the organizations scanned; empty means all.
	OrganizationIDs []uuid.UUID `json:"organization_ids,omitempty"`
}

type ConsultantMergeRequest struct {
	PrimaryText    string     `json:"primary_text" validate:"max=200"`
	MergeTexts     []string   `json:"merge_texts" validate:"dive,max=200"`
	ChosenText     string     `json:"chosen_text" validate:"max=200"`
	OrganizationID *uuid.UUID `json:"organization_id"`
}

// ConsultantMergeService standardizes free-text consultant names on bookings.
// A scope is an organization plus, for a travel agent, every customer
// organization it services.
type ConsultantMergeService struct {
	*MergeDeps
}

func NewConsultantMergeService(deps *MergeDeps) *ConsultantMergeService {
	return &ConsultantMergeService{MergeDeps: deps}
}

func (s *ConsultantMergeService) Kind() models.MergeKind {
	return models.MergeKindConsultant
}

// resolveTextScope returns the organizations a text operation spans and the
// organization it is recorded against. Both are nil for an unscoped system actor.
func resolveTextScope(ctx context.Context, st Stores, actor models.Actor, requested *uuid.UUID) ([]uuid.UUID, *uuid.UUID, error) {
	scope, err := auth.ResolveScope(actor, requested)
	if err != nil {
		return nil, nil, err
	}
	if scope == nil {
		return nil, nil, nil
	}

	org, err := st.Organizations.Get(ctx, *scope)
	if err != nil {
		return nil, nil, apperr.FromDB(err, "organization")
	}
	orgIDs := []uuid.UUID{org.ID}
	if org.OrgType == models.OrgTypeAgent {
		customers, err := st.Organizations.ListCustomerIDs(ctx, org.ID)
		if err != nil {
			return nil, nil, apperr.FromDB(err, "organizations")
		}
		orgIDs = append(orgIDs, customers...)
	}
	return orgIDs, &org.ID, nil
}

// FindDuplicates groups the distinct consultant texts seen on bookings in scope.
func (s *ConsultantMergeService) FindDuplicates(ctx context.Context, actor models.Actor, q DuplicateQuery) (*ConsultantDuplicates, error) {
	minSimilarity, err := s.minSimilarity(q.MinSimilarity)
	if err != nil {
		return nil, err
	}
	orgIDs, orgID, err := resolveTextScope(ctx, s.Stores, actor, q.OrganizationID)
	if err != nil {
		return nil, err
	}

	scopeKey := ""
	if orgID != nil {
		scopeKey = orgID.String()
	}
	key := cache.DuplicatesKey(models.MergeKindConsultant, scopeKey, minSimilarity)
	var result ConsultantDuplicates
	if s.cached(ctx, key, &result) {
		return &result, nil
	}

	texts, err := s.Stores.Bookings.DistinctConsultantTexts(ctx, orgIDs)
	if err != nil {
		return nil, apperr.FromDB(err, "consultant texts")
	}

	counts := make(map[string]int, len(texts))
	candidates := make([]dedupe.Candidate, 0, len(texts))
	for _, t := range texts {
		counts[t.Text] = t.BookingCount
		candidates = append(candidates, dedupe.Candidate{
			ID:     t.Text,
			Scope:  textScope,
			Key:    t.Text,
			Active: true,
		})
	}

	start := time.Now()
	groups, err := dedupe.FindDuplicates(ctx, candidates, dedupe.Options{
		MinSimilarity: minSimilarity,
		MaxScopeSize:  s.Config.MaxScopeSize,
		Workers:       s.Config.ScanWorkers,
	})
	metrics.DuplicateScanDuration.WithLabelValues(string(models.MergeKindConsultant)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	result = ConsultantDuplicates{
		DuplicateGroups: make([]TextGroup, 0, len(groups)),
		MinSimilarity:   minSimilarity,
		OrganizationIDs: orgIDs,
	}
	for _, g := range groups {
		group := TextGroup{
			Primary: models.ConsultantText{Text: g.Primary.ID, BookingCount: counts[g.Primary.ID]},
			Matches: make([]TextMatch, 0, len(g.Matches)),
		}
		for _, m := range g.Matches {
			group.Matches = append(group.Matches, TextMatch{
				ConsultantText:  models.ConsultantText{Text: m.Candidate.ID, BookingCount: counts[m.Candidate.ID]},
				SimilarityScore: round2(m.Similarity),
			})
		}
		result.DuplicateGroups = append(result.DuplicateGroups, group)
	}
	result.TotalGroups = len(result.DuplicateGroups)
	metrics.DuplicateGroupsFound.WithLabelValues(string(models.MergeKindConsultant)).Observe(float64(result.TotalGroups))

	s.remember(ctx, key, &result)
	return &result, nil
}

// Merge rewrites every booking in scope whose consultant text equals the
// primary text or one of the merge texts to a single final text.
func (s *ConsultantMergeService) Merge(ctx context.Context, actor models.Actor, req ConsultantMergeRequest) (*MergeResult, error) {
	result, entry, err := s.merge(ctx, actor, req)
	metrics.MergesTotal.WithLabelValues(string(models.MergeKindConsultant), outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.committed(ctx, entry)
	s.Logger.Info("consultant texts merged",
		zap.String("merge_audit_id", entry.ID.String()),
		zap.String("final_text", entry.RelationshipUpdates.FinalText),
		zap.Int("merged_count", result.MergedCount),
		zap.Int("reassigned_count", result.ReassignedCount),
		zap.String("performed_by", actor.Username))
	return result, nil
}

func uniqueTexts(texts []string) []string {
	seen := make(map[string]bool, len(texts))
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (s *ConsultantMergeService) merge(ctx context.Context, actor models.Actor, req ConsultantMergeRequest) (*MergeResult, *models.MergeAudit, error) {
	if strings.TrimSpace(req.PrimaryText) == "" || len(req.MergeTexts) == 0 {
		return nil, nil, apperr.Validation("primary_text and merge_texts are required")
	}
	mergeTexts := uniqueTexts(req.MergeTexts)
	for _, t := range mergeTexts {
		if strings.TrimSpace(t) == "" {
			return nil, nil, apperr.Validation("merge_texts cannot contain blank values")
		}
		if t == req.PrimaryText {
			return nil, nil, apperr.Validation("primary text %q cannot be merged into itself", t)
		}
	}
	sort.Strings(mergeTexts)

	finalText := strings.TrimSpace(req.ChosenText)
	if finalText == "" {
		finalText = req.PrimaryText
	}
	limit := s.Config.TextSampleLimit

	var (
		result *MergeResult
		entry  *models.MergeAudit
	)
	err := s.Tx.WithinTx(ctx, func(st Stores) error {
		orgIDs, orgID, err := resolveTextScope(ctx, st, actor, req.OrganizationID)
		if err != nil {
			return err
		}

		primaryIDs, err := st.Bookings.LockIDsByConsultantText(ctx, orgIDs, req.PrimaryText)
		if err != nil {
			return apperr.FromDB(err, "bookings")
		}
		if len(primaryIDs) == 0 {
			return apperr.NotFound("consultant text %q not found", req.PrimaryText)
		}

		locked := map[string][]uuid.UUID{req.PrimaryText: primaryIDs}
		for _, t := range mergeTexts {
			ids, err := st.Bookings.LockIDsByConsultantText(ctx, orgIDs, t)
			if err != nil {
				return apperr.FromDB(err, "bookings")
			}
			if len(ids) == 0 {
				return apperr.Validation("consultant text %q does not appear on any booking in scope", t)
			}
			locked[t] = ids
		}

		snapshot := make(map[string]models.ConsultantTextSnapshot, len(locked))
		updated := 0
		for text, ids := range locked {
			sample := ids
			truncated := false
			if limit > 0 && len(ids) > limit {
				sample = ids[:limit]
				truncated = true
			}
			snapshot[text] = models.ConsultantTextSnapshot{
				Text:         text,
				BookingCount: len(ids),
				SampleIDs:    append([]uuid.UUID(nil), sample...),
				Truncated:    truncated,
			}

			if text == finalText {
				updated += len(ids)
				continue
			}
			n, err := st.Bookings.ReplaceConsultantText(ctx, ids, text, finalText)
			if err != nil {
				return apperr.FromDB(err, "bookings")
			}
			if int(n) != len(ids) {
				return apperr.Conflict("bookings with consultant %q changed during the merge, retry the request", text)
			}
			updated += len(ids)
		}

		entry = &models.MergeAudit{
			ID:              uuid.New(),
			MergeType:       models.MergeKindConsultant,
			Status:          models.MergeStatusCompleted,
			PerformedByID:   actorID(actor),
			PerformedBy:     actor.Username,
			OrganizationID:  orgID,
			PrimaryObjectID: req.PrimaryText,
			MergedRecordIDs: mergeTexts,
			Snapshot:        models.MergeSnapshot{ConsultantTexts: snapshot},
			RelationshipUpdates: models.RelationshipUpdates{
				UpdatedCount:         updated,
				FinalText:            finalText,
				ScopeOrganizationIDs: orgIDs,
			},
			ChosenText: strings.TrimSpace(req.ChosenText),
			Summary:    fmt.Sprintf("Standardized %d consultant names into %s", len(mergeTexts)+1, finalText),
			CreatedAt:  timeutil.Now(),
		}
		if err := st.Audits.Create(ctx, entry); err != nil {
			return apperr.FromDB(err, "merge audit")
		}

		result = &MergeResult{
			Success:      true,
			MergeAuditID: entry.ID.String(),
			PrimarySummary: PrimarySummary{
				ID:   req.PrimaryText,
				Name: finalText,
			},
			MergedCount:     len(mergeTexts),
			ReassignedCount: updated,
		}
		return nil
	})
	if err != nil {
		return nil, nil, apperr.FromDB(err, "consultant merge")
	}
	return result, entry, nil
}

// Undo rewrites the sampled bookings of each merged text back to that text.
// Bookings beyond the sample keep the final text.
func (s *ConsultantMergeService) Undo(ctx context.Context, actor models.Actor, entryID uuid.UUID, _ UndoOptions) (*UndoResult, error) {
	result, entry, err := s.undo(ctx, actor, entryID)
	metrics.UndosTotal.WithLabelValues(string(models.MergeKindConsultant), outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.committed(ctx, entry)
	s.Logger.Info("consultant merge undone",
		zap.String("merge_audit_id", entry.ID.String()),
		zap.Int("restored_count", result.RestoredCount),
		zap.String("undone_by", actor.Username))
	return result, nil
}

func (s *ConsultantMergeService) undo(ctx context.Context, actor models.Actor, entryID uuid.UUID) (*UndoResult, *models.MergeAudit, error) {
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
		if entry.MergeType != models.MergeKindConsultant {
			return apperr.Validation("merge audit %s is not a consultant merge", entry.ID)
		}
		if entry.Status == models.MergeStatusUndone {
			return apperr.Validation("this merge has already been undone")
		}
		if !auth.CanAccess(actor, entry.OrganizationID) {
			return apperr.Permission("no access to merge audit %s", entry.ID)
		}

		finalText := entry.RelationshipUpdates.FinalText
		texts := make([]string, 0, len(entry.Snapshot.ConsultantTexts))
		for text := range entry.Snapshot.ConsultantTexts {
			texts = append(texts, text)
		}
		sort.Strings(texts)

		restored := 0
		truncated := false
		for _, text := range texts {
			snap := entry.Snapshot.ConsultantTexts[text]
			truncated = truncated || snap.Truncated
			if text == finalText {
				continue
			}
			n, err := st.Bookings.ReplaceConsultantText(ctx, snap.SampleIDs, finalText, text)
			if err != nil {
				return apperr.FromDB(err, "bookings")
			}
			restored += int(n)
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

		msg := fmt.Sprintf("Merge undone successfully. %d bookings restored.", restored)
		if truncated {
			msg += " Bookings beyond the recorded sample keep the standardized name."
		}
		result = &UndoResult{Success: true, RestoredCount: restored, Message: msg}
		return nil
	})
	if err != nil {
		return nil, nil, apperr.FromDB(err, "consultant merge")
	}
	return result, entry, nil
}
