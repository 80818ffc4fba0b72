package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"travel-backend/internal/auth"
	"travel-backend/internal/models"
	"travel-backend/pkg/utils"
)

type contextKey string

const ActorKey contextKey = "actor"

// UserLookup loads the current state of a token's user.
type UserLookup interface {
	Get(ctx context.Context, id int) (*models.User, error)
}

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	users      UserLookup
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		users:      users,
	}
}

// authenticate resolves the request's bearer token to a live user. It writes
// the failure response itself and returns nil when the request must stop.
func (m *AuthMiddleware) authenticate(w http.ResponseWriter, r *http.Request) *models.User {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		utils.Error(w, http.StatusUnauthorized, "unauthorized", "Authorization header required")
		return nil
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		utils.Error(w, http.StatusUnauthorized, "unauthorized", "Invalid authorization format")
		return nil
	}

	claims, err := m.jwtManager.ValidateToken(parts[1])
	if err != nil {
		utils.Error(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
		return nil
	}

	// Check database for current user status (for immediate permission updates)
	user, err := m.users.Get(r.Context(), claims.UserID)
	if err != nil {
		utils.Error(w, http.StatusUnauthorized, "unauthorized", "User not found")
		return nil
	}

	if !user.IsActive {
		utils.Error(w, http.StatusForbidden, "permission_denied", "Account suspended. Please contact administrator.")
		return nil
	}
	return user
}

// Authenticate is a middleware that validates JWT tokens
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := m.authenticate(w, r)
		if user == nil {
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), models.ActorFromUser(user))))
	})
}

// RequireRole is a middleware that ensures the user has one of the allowed user types
func (m *AuthMiddleware) RequireRole(allowedTypes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := m.authenticate(w, r)
			if user == nil {
				return
			}

			// Role comes from the database, not the token
			if !slices.Contains(allowedTypes, user.UserType) {
				utils.Error(w, http.StatusForbidden, "permission_denied", "Forbidden: Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), models.ActorFromUser(user))))
		})
	}
}

// RequireElevated admits the administrative user types only.
func (m *AuthMiddleware) RequireElevated(next http.Handler) http.Handler {
	return m.RequireRole(models.ElevatedUserTypes...)(next)
}

func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}

// GetActorFromContext extracts the authenticated actor from request context
func GetActorFromContext(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(ActorKey).(models.Actor)
	return a, ok
}
