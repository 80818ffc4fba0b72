package services

import (
	"context"
	"encoding/json"
	"math"

	"go.uber.org/zap"

	"travel-backend/internal/apperr"
	"travel-backend/internal/config"
	"travel-backend/internal/models"
)

// ResultCache holds serialized find-duplicates results between merges.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
	InvalidateKind(ctx context.Context, kind models.MergeKind)
}

// AuditArchiver keeps an off-database copy of ledger entries.
type AuditArchiver interface {
	Archive(ctx context.Context, entry *models.MergeAudit) error
}

// MergeDeps are shared by the merge engines.
type MergeDeps struct {
	// Stores serve reads outside any transaction.
	Stores Stores
	Tx     Transactor
	// Cache and Archiver are optional.
	Cache    ResultCache
	Archiver AuditArchiver
	Config   config.MergeConfig
	Logger   *zap.Logger
}

// UndoOptions tune an undo.
type UndoOptions struct {
	// RestoreRelationships repoints moved bookings back to the traveller they
	// belonged to before the merge, where they still sit on the survivor.
	RestoreRelationships bool `json:"restore_relationships"`
}

type PrimarySummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EmployeeID string `json:"employee_id,omitempty"`
}

type MergeResult struct {
	Success         bool           `json:"success"`
	MergeAuditID    string         `json:"merge_audit_id"`
	PrimarySummary  PrimarySummary `json:"primary_summary"`
	MergedCount     int            `json:"merged_count"`
	ReassignedCount int            `json:"reassigned_count"`
}

type UndoResult struct {
	Success       bool   `json:"success"`
	RestoredCount int    `json:"restored_count"`
	RelinkedCount int    `json:"relinked_count"`
	Message       string `json:"message"`
}

func (d *MergeDeps) minSimilarity(requested *float64) (float64, error) {
	if requested == nil {
		return d.Config.DefaultMinSimilarity, nil
	}
	v := *requested
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, apperr.Validation("min_similarity must be between 0 and 1")
	}
	return v, nil
}

func (d *MergeDeps) cached(ctx context.Context, key string, dst any) bool {
	if d.Cache == nil {
		return false
	}
	data, ok := d.Cache.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (d *MergeDeps) remember(ctx context.Context, key string, v any) {
	if d.Cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		d.Logger.Warn("encode duplicate scan for cache", zap.String("key", key), zap.Error(err))
		return
	}
	d.Cache.Set(ctx, key, data)
}

// committed runs once a merge or undo transaction has committed. Failures here
// are logged and never undo the committed work.
func (d *MergeDeps) committed(ctx context.Context, entry *models.MergeAudit) {
	if d.Cache != nil {
		d.Cache.InvalidateKind(ctx, entry.MergeType)
	}
	if d.Archiver != nil {
		if err := d.Archiver.Archive(ctx, entry); err != nil {
			d.Logger.Warn("archive merge audit",
				zap.String("merge_audit_id", entry.ID.String()),
				zap.Error(err))
		}
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}

func actorID(a models.Actor) *int {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
