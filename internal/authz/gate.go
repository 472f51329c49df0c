// Package authz decides whether a session may perform an action.  It is a
// pure function of its inputs: it never reads the datastore, so callers
// must resolve ownership (the admin that owns a product or consumption)
// before asking.
package authz

import (
	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/model"
)

// Action names a privileged operation.
type Action int

const (
	// ViewSelf covers self-scoped reads and writes (own consumptions,
	// notifications, billing info of an admin).
	ViewSelf Action = iota
	ViewProfile
	UpdateProfile
	// SetBillingInfo guards pixKey/pixQrCode writes, even on one's own profile.
	SetBillingInfo
	ListUsers
	ManageProduct
	ClearDebt
	RecordConsumption
	DeleteConsumption
	ViewTenantReport
)

var actionNames = map[Action]string{
	ViewSelf:          "view_self",
	ViewProfile:       "view_profile",
	UpdateProfile:     "update_profile",
	SetBillingInfo:    "set_billing_info",
	ListUsers:         "list_users",
	ManageProduct:     "manage_product",
	ClearDebt:         "clear_debt",
	RecordConsumption: "record_consumption",
	DeleteConsumption: "delete_consumption",
	ViewTenantReport:  "view_tenant_report",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown"
}

// Target identifies what an action applies to.  UserID is the subject
// user (profile owner, consumer); OwnerID is the admin that owns the
// product or consumption being touched.  Empty fields mean "not
// applicable", e.g. OwnerID on product creation.
type Target struct {
	UserID  string
	OwnerID string
}

// User targets a user record.
func User(id string) Target { return Target{UserID: id} }

// OwnedBy targets a resource owned by the admin adminID.
func OwnedBy(adminID string) Target { return Target{OwnerID: adminID} }

// None is the target of actions that need no resource identity.
var None = Target{}

// Authorize returns nil when s may perform a on t.  A nil session yields an
// Unauthorized error; any other refusal is Forbidden.
func Authorize(s *model.SessionUser, a Action, t Target) error {
	if s == nil {
		return apperr.Unauthorized("authentication required")
	}
	switch a {
	case ViewSelf:
		return nil

	case ViewProfile, UpdateProfile:
		if s.ID == t.UserID || s.IsAdmin {
			return nil
		}
		return apperr.Forbidden("cannot access another user's profile")

	case SetBillingInfo:
		if s.IsAdmin {
			return nil
		}
		return apperr.Forbidden("only admins can set billing information")

	case ListUsers, ViewTenantReport:
		if s.IsAdmin {
			return nil
		}
		return apperr.Forbidden("admin access required")

	case ManageProduct, ClearDebt, DeleteConsumption:
		if !s.IsAdmin {
			return apperr.Forbidden("admin access required")
		}
		if t.OwnerID != "" && t.OwnerID != s.ID {
			return apperr.Forbidden("resource belongs to another admin")
		}
		return nil

	case RecordConsumption:
		if t.UserID == "" || t.UserID == s.ID || s.IsAdmin {
			return nil
		}
		return apperr.Forbidden("cannot record consumption for another user")
	}
	return apperr.Forbidden("unknown action")
}

// ProductShape is the form of the products listing a session receives.
type ProductShape string

const (
	// Flat is a plain list of the admin's own products.
	Flat ProductShape = "Flat"
	// GroupedByAdmin maps each admin to the products it sells.
	GroupedByAdmin ProductShape = "GroupedByAdmin"
)

// ProductView resolves the listing shape: admins manage their own
// catalogue, everyone else shops across tenants.
func ProductView(s *model.SessionUser) ProductShape {
	if s != nil && s.IsAdmin {
		return Flat
	}
	return GroupedByAdmin
}
