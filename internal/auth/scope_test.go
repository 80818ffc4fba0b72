package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-backend/internal/apperr"
	"travel-backend/internal/models"
)

func TestResolveScope(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	admin := models.Actor{Username: "root", UserType: models.UserTypeAdmin}
	agentAdmin := models.Actor{Username: "agent", UserType: models.UserTypeAgentAdmin, OrganizationID: &own}
	orphan := models.Actor{Username: "orphan", UserType: models.UserTypeCustomerAdmin}

	tests := []struct {
		name      string
		actor     models.Actor
		requested *uuid.UUID
		want      *uuid.UUID
		wantKind  apperr.Kind
	}{
		{name: "system actor without scope sees everything", actor: admin, requested: nil, want: nil},
		{name: "system actor may pick any scope", actor: admin, requested: &other, want: &other},
		{name: "scoped actor defaults to own org", actor: agentAdmin, requested: nil, want: &own},
		{name: "scoped actor naming own org", actor: agentAdmin, requested: &own, want: &own},
		{name: "scoped actor naming another org", actor: agentAdmin, requested: &other, wantKind: apperr.KindPermission},
		{name: "scoped actor without org", actor: orphan, requested: nil, wantKind: apperr.KindPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveScope(tt.actor, tt.requested)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanAccess(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	admin := models.Actor{UserType: models.UserTypeAdmin}
	scoped := models.Actor{UserType: models.UserTypeCustomerAdmin, OrganizationID: &own}

	assert.True(t, CanAccess(admin, &other))
	assert.True(t, CanAccess(admin, nil))
	assert.True(t, CanAccess(scoped, &own))
	assert.False(t, CanAccess(scoped, &other))
	assert.False(t, CanAccess(scoped, nil))
}

func TestIsElevated(t *testing.T) {
	assert.True(t, IsElevated(models.Actor{UserType: models.UserTypeAdmin}))
	assert.True(t, IsElevated(models.Actor{UserType: models.UserTypeAgentAdmin}))
	assert.True(t, IsElevated(models.Actor{UserType: models.UserTypeCustomerAdmin}))
	assert.False(t, IsElevated(models.Actor{UserType: models.UserTypeAgentUser}))
	assert.False(t, IsElevated(models.Actor{UserType: models.UserTypeCustomer}))
}
