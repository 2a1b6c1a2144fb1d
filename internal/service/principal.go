package service

import (
	"credit-ledger/internal/model"
)

// Principal is the authenticated caller. The identity boundary is trusted:
// the ledger only checks that the role may perform the operation.
type Principal struct {
	ID   int64
	Role model.Role
}

// System acts for scheduled jobs and bootstrap tasks. It is an admin with no
// account of its own.
var System = Principal{ID: 0, Role: model.RoleAdmin}

// IsAdmin reports whether p has the ADMIN role.
func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// owns reports whether p may act on accountID as its owner or as an admin.
func (p Principal) owns(accountID int64) bool {
	return p.IsAdmin() || p.ID == accountID
}
