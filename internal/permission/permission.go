// Package permission decides whether an actor may perform an action. The
// actor is always passed in explicitly; nothing is read from request state.
package permission

import "account-service/internal/models"

// Identity is the authenticated caller.
type Identity struct {
	UserID int64
	Email  string
	Role   models.UserRole
}

type Action string

const (
	ActionRegister             Action = "register"
	ActionLogin                Action = "login"
	ActionPasswordResetRequest Action = "password_reset_request"
	ActionPasswordResetConfirm Action = "password_reset_confirm"
	ActionTokenRefresh         Action = "token_refresh"

	ActionLogout         Action = "logout"
	ActionPasswordChange Action = "password_change"
	ActionMe             Action = "me"

	ActionUserList   Action = "user_list"
	ActionUserView   Action = "user_view"
	ActionUserEdit   Action = "user_edit"
	ActionUserDelete Action = "user_delete"

	ActionProfileView   Action = "profile_view"
	ActionProfileUpdate Action = "profile_update"
	ActionAccountView   Action = "account_view"
	ActionAccountUpdate Action = "account_update"
	ActionAccountDelete Action = "account_delete"

	ActionStorefrontManage Action = "storefront_manage"
	ActionOrderPlace       Action = "order_place"
)

type kind int

const (
	kindUnknown kind = iota
	kindPublic
	kindSelfService
	kindManagement
	kindObjectSafe
	kindObjectMutating
	kindSellerOnly
	kindCustomerOnly
)

var actionKinds = map[Action]kind{
	ActionRegister:             kindPublic,
	ActionLogin:                kindPublic,
	ActionPasswordResetRequest: kindPublic,
	ActionPasswordResetConfirm: kindPublic,
	ActionTokenRefresh:         kindPublic,

	ActionLogout:         kindSelfService,
	ActionPasswordChange: kindSelfService,
	ActionMe:             kindSelfService,

	ActionUserList:   kindManagement,
	ActionUserView:   kindManagement,
	ActionUserEdit:   kindManagement,
	ActionUserDelete: kindManagement,

	ActionProfileView:   kindObjectSafe,
	ActionAccountView:   kindObjectSafe,
	ActionProfileUpdate: kindObjectMutating,
	ActionAccountUpdate: kindObjectMutating,
	ActionAccountDelete: kindObjectMutating,

	ActionStorefrontManage: kindSellerOnly,
	ActionOrderPlace:       kindCustomerOnly,
}

// Resource is the object an object-level action targets.
type Resource struct {
	OwnerID int64
}

// Allowed evaluates the rules in order and the first match decides:
//
//  1. anonymous callers may only perform public actions
//  2. management actions belong to admins
//  3. object actions: reads for anyone signed in, writes for the owner
//  4. role-gated actions compare the caller's role
//
// Unknown actions are denied.
func Allowed(actor *Identity, action Action, resource *Resource) bool {
	k := actionKinds[action]
	if k == kindUnknown {
		return false
	}
	if actor == nil {
		return k == kindPublic
	}

	switch k {
	case kindPublic, kindSelfService:
		return true
	case kindManagement:
		return isAdmin(actor.Role)
	case kindObjectSafe:
		return resource != nil
	case kindObjectMutating:
		return resource != nil && resource.OwnerID == actor.UserID
	case kindSellerOnly:
		return actor.Role == models.RoleSeller
	case kindCustomerOnly:
		return actor.Role == models.RoleCustomer
	}
	return false
}

func isAdmin(role models.UserRole) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer, models.RoleSeller:
		return false
	}
	return false
}
