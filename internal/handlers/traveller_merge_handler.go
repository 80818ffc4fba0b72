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

type TravellerMerger interface {
	FindDuplicates(ctx context.Context, actor models.Actor, q services.DuplicateQuery) (*services.TravellerDuplicates, error)
	Merge(ctx context.Context, actor models.Actor, req services.TravellerMergeRequest) (*services.MergeResult, error)
	Undo(ctx context.Context, actor models.Actor, entryID uuid.UUID, opts services.UndoOptions) (*services.UndoResult, error)
}

type TravellerMergeHandler struct {
	Service TravellerMerger
	Logger  *zap.Logger
}

func NewTravellerMergeHandler(s TravellerMerger, logger *zap.Logger) *TravellerMergeHandler {
	return &TravellerMergeHandler{Service: s, Logger: logger}
}

// FindDuplicates handles GET /api/traveller-merge/find-duplicates
func (h *TravellerMergeHandler) FindDuplicates(w http.ResponseWriter, r *http.Request) {
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

// Merge handles POST /api/traveller-merge/merge
func (h *TravellerMergeHandler) Merge(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req services.TravellerMergeRequest
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

// Undo handles POST /api/traveller-merge/{id}/undo
func (h *TravellerMergeHandler) Undo(w http.ResponseWriter, r *http.Request) {
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

func duplicateQuery(r *http.Request) (services.DuplicateQuery, error) {
	org, err := scopeParam(r)
	if err != nil {
		return services.DuplicateQuery{}, err
	}
	minSim, err := minSimilarityParam(r)
	if err != nil {
		return services.DuplicateQuery{}, err
	}
	return services.DuplicateQuery{OrganizationID: org, MinSimilarity: minSim}, nil
}
