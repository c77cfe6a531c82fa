package permission

import (
	"testing"

	"account-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAllowedAnonymous(t *testing.T) {
	public := []Action{ActionRegister, ActionLogin, ActionPasswordResetRequest, ActionPasswordResetConfirm, ActionTokenRefresh}
	for _, a := range public {
		assert.True(t, Allowed(nil, a, nil), a)
	}

	private := []Action{ActionLogout, ActionMe, ActionUserList, ActionProfileView, ActionStorefrontManage}
	for _, a := range private {
		assert.False(t, Allowed(nil, a, &Resource{OwnerID: 1}), a)
	}
}

func TestAllowedManagementRequiresAdmin(t *testing.T) {
	admin := &Identity{UserID: 1, Role: models.RoleAdmin}
	seller := &Identity{UserID: 2, Role: models.RoleSeller}
	customer := &Identity{UserID: 3, Role: models.RoleCustomer}

	for _, a := range []Action{ActionUserList, ActionUserView, ActionUserEdit, ActionUserDelete} {
		assert.True(t, Allowed(admin, a, nil), a)
		assert.False(t, Allowed(seller, a, nil), a)
		assert.False(t, Allowed(customer, a, nil), a)
	}
}

func TestAllowedObjectActions(t *testing.T) {
	owner := &Identity{UserID: 7, Role: models.RoleCustomer}
	other := &Identity{UserID: 8, Role: models.RoleCustomer}
	res := &Resource{OwnerID: 7}

	assert.True(t, Allowed(owner, ActionProfileView, res))
	assert.True(t, Allowed(other, ActionProfileView, res))
	assert.True(t, Allowed(owner, ActionProfileUpdate, res))
	assert.False(t, Allowed(other, ActionProfileUpdate, res))
	assert.False(t, Allowed(other, ActionAccountDelete, res))
	assert.False(t, Allowed(owner, ActionProfileUpdate, nil))
}

func TestAllowedRoleGated(t *testing.T) {
	seller := &Identity{UserID: 1, Role: models.RoleSeller}
	customer := &Identity{UserID: 2, Role: models.RoleCustomer}
	admin := &Identity{UserID: 3, Role: models.RoleAdmin}

	assert.True(t, Allowed(seller, ActionStorefrontManage, nil))
	assert.False(t, Allowed(customer, ActionStorefrontManage, nil))
	assert.False(t, Allowed(admin, ActionStorefrontManage, nil))

	assert.True(t, Allowed(customer, ActionOrderPlace, nil))
	assert.False(t, Allowed(seller, ActionOrderPlace, nil))
}

func TestAllowedSelfServiceAndUnknown(t *testing.T) {
	customer := &Identity{UserID: 2, Role: models.RoleCustomer}

	for _, a := range []Action{ActionLogout, ActionPasswordChange, ActionMe, ActionLogin, ActionRegister} {
		assert.True(t, Allowed(customer, a, nil), a)
	}
	assert.False(t, Allowed(customer, Action("launch_rockets"), nil))
	assert.False(t, Allowed(&Identity{UserID: 1, Role: models.RoleAdmin}, Action(""), nil))
}
