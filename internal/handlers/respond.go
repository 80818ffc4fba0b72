package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"travel-backend/internal/apperr"
	"travel-backend/internal/middleware"
	"travel-backend/internal/models"
	"travel-backend/pkg/utils"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation: http.StatusBadRequest,
	apperr.KindNotFound:   http.StatusNotFound,
	apperr.KindPermission: http.StatusForbidden,
	apperr.KindConflict:   http.StatusConflict,
	apperr.KindInternal:   http.StatusInternalServerError,
}

// writeError maps err onto its HTTP status. Internal errors are logged with
// their cause and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := kindStatus[kind]

	var appErr *apperr.Error
	if kind == apperr.KindInternal || !errors.As(err, &appErr) {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		utils.Error(w, http.StatusInternalServerError, string(apperr.KindInternal), "Internal server error")
		return
	}
	utils.Error(w, status, string(kind), appErr.Message)
}

// decodeBody reads a JSON body into dst and validates it. An empty body is
// accepted when allowEmpty is set.
func decodeBody(r *http.Request, dst any, allowEmpty bool) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.Validation("%s failed %s validation", fe.Field(), fe.Tag())
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}

func requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		utils.Error(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
	}
	return actor, ok
}

// scopeParam reads the optional organization scope, accepted as
// organization_id or organization.
func scopeParam(r *http.Request) (*uuid.UUID, error) {
	q := r.URL.Query()
	raw := q.Get("organization_id")
	if raw == "" {
		raw = q.Get("organization")
	}
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("invalid organization id %q", raw)
	}
	return &id, nil
}

func minSimilarityParam(r *http.Request) (*float64, error) {
	raw := r.URL.Query().Get("min_similarity")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.Validation("min_similarity must be a number")
	}
	return &v, nil
}

func pathID(r *http.Request, what string) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s id %q", what, raw)
	}
	return id, nil
}
