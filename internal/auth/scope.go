package auth

import (
	"slices"

	"github.com/google/uuid"

	"travel-backend/internal/apperr"
	"travel-backend/internal/models"
)

// IsElevated reports whether the actor may use the data-management endpoints.
func IsElevated(a models.Actor) bool {
	return slices.Contains(models.ElevatedUserTypes, a.UserType)
}

// ResolveScope turns a requested organization into the one the actor may act
// on. System actors may name any organization or none, where nil means every
// organization. Scoped actors are pinned to their own organization; naming
// another one is a permission error.
func ResolveScope(a models.Actor, requested *uuid.UUID) (*uuid.UUID, error) {
	if a.IsSystem() {
		return requested, nil
	}
	if a.OrganizationID == nil {
		return nil, apperr.Permission("user %s is not attached to an organization", a.Username)
	}
	if requested != nil && *requested != *a.OrganizationID {
		return nil, apperr.Permission("no access to organization %s", requested)
	}
	own := *a.OrganizationID
	return &own, nil
}

// CanAccess reports whether the actor may act on records of the given organization.
// A nil org is only reachable by system actors.
func CanAccess(a models.Actor, org *uuid.UUID) bool {
	if a.IsSystem() {
		return true
	}
	return org != nil && a.OrganizationID != nil && *org == *a.OrganizationID
}
