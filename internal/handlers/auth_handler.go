package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"travel-backend/internal/middleware"
	"travel-backend/internal/models"
	"travel-backend/internal/services"
	"travel-backend/pkg/utils"
)

// Authenticator issues tokens for username and password pairs.
type Authenticator interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error)
}

type AuthHandler struct {
	Service Authenticator
	Logger  *zap.Logger
}

func NewAuthHandler(s Authenticator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		Service: s,
		Logger:  logger,
	}
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	authResp, err := h.Service.Login(r.Context(), &req)
	switch {
	case errors.Is(err, services.ErrAccountSuspended):
		utils.Error(w, http.StatusForbidden, "permission_denied", "Account suspended. Please contact administrator.")
		return
	case errors.Is(err, services.ErrInvalidCredentials):
		h.Logger.Info("login rejected", zap.String("username", req.Username), zap.String("ip", middleware.ClientIP(r)))
		utils.Error(w, http.StatusUnauthorized, "unauthorized", "Invalid username or password")
		return
	case err != nil:
		writeError(w, r, h.Logger, err)
		return
	}

	h.Logger.Info("login", zap.Int("user_id", authResp.User.ID), zap.String("ip", middleware.ClientIP(r)))
	utils.JSON(w, http.StatusOK, authResp)
}
