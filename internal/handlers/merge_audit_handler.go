package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"travel-backend/internal/models"
	"travel-backend/internal/services"
	"travel-backend/pkg/utils"
)

type AuditLedger interface {
	List(ctx context.Context, actor models.Actor, q services.AuditQuery) (*services.AuditList, error)
	Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*services.AuditDetail, error)
	Undo(ctx context.Context, actor models.Actor, id uuid.UUID, opts services.UndoOptions) (*services.UndoResult, error)
}

type MergeAuditHandler struct {
	Service AuditLedger
	Logger  *zap.Logger
}

func NewMergeAuditHandler(s AuditLedger, logger *zap.Logger) *MergeAuditHandler {
	return &MergeAuditHandler{Service: s, Logger: logger}
}

// List handles GET /api/merge-audit
func (h *MergeAuditHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	org, err := scopeParam(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	params := r.URL.Query()
	q := services.AuditQuery{
		OrganizationID: org,
		MergeType:      models.MergeKind(params.Get("merge_type")),
		Status:         models.MergeStatus(params.Get("status")),
		Search:         params.Get("search"),
	}

	result, err := h.Service.List(r.Context(), actor, q)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}

// Get handles GET /api/merge-audit/{id}
func (h *MergeAuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "merge audit")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	detail, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, detail)
}

// Undo handles POST /api/merge-audit/{id}/undo for any merge kind.
func (h *MergeAuditHandler) Undo(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "merge audit")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	var opts services.UndoOptions
	if err := decodeBody(r, &opts, true); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	result, err := h.Service.Undo(r.Context(), actor, id, opts)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}
