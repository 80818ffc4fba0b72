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

type ConsultantMerger interface {
	FindDuplicates(ctx context.Context, actor models.Actor, q services.DuplicateQuery) (*services.ConsultantDuplicates, error)
	Merge(ctx context.Context, actor models.Actor, req services.ConsultantMergeRequest) (*services.MergeResult, error)
	Undo(ctx context.Context, actor models.Actor, entryID uuid.UUID, opts services.UndoOptions) (*services.UndoResult, error)
}

type ConsultantMergeHandler struct {
	Service ConsultantMerger
	Logger  *zap.Logger
}

func NewConsultantMergeHandler(s ConsultantMerger, logger *zap.Logger) *ConsultantMergeHandler {
	return &ConsultantMergeHandler{Service: s, Logger: logger}
}

func (h *ConsultantMergeHandler) FindDuplicates(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	q, err := duplicateQuery(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	result, err := h.Service.FindDuplicates(r.Context(), actor, q)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}

func (h *ConsultantMergeHandler) Merge(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req services.ConsultantMergeRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	result, err := h.Service.Merge(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}

// Undo takes no options. Consultant merges have no relationships to restore
// beyond the text rewrite itself.
func (h *ConsultantMergeHandler) Undo(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "merge audit")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	result, err := h.Service.Undo(r.Context(), actor, id, services.UndoOptions{})
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}
