package app

import (
	"fmt"

	"clinic-billing/internal/core"
)

// capability names an operation class for role checks. Reads are open to
// every authenticated role; write capabilities are granted per role below.
type capability string

const (
	capManageUsers    capability = "manage_users"
	capManageCatalog  capability = "manage_catalog"
	capCreateInvoice  capability = "create_invoice"
	capRecordPayment  capability = "record_payment"
	capIssueRefund    capability = "issue_refund"
	capVoidInvoice    capability = "void_invoice"
	capAdjustStock    capability = "adjust_stock"
	capManagePurchase capability = "manage_purchasing"
	capSupplierMoney  capability = "supplier_money"
)

// roleGrants maps each role to its write capabilities. Admin is handled in
// Can and holds everything.
var roleGrants = map[string]map[capability]bool{
	core.RoleDoctor: {
		capCreateInvoice: true,
	},
	core.RoleReceptionist: {
		capCreateInvoice: true,
		capRecordPayment: true,
		capIssueRefund:   true,
	},
	core.RoleAssistant: {
		capAdjustStock:    true,
		capManagePurchase: true,
	},
}

// Can reports whether a role holds a capability.
func Can(role string, c capability) bool {
	if role == core.RoleAdmin {
		return true
	}
	return roleGrants[role][c]
}

// require returns ErrForbidden when the actor's role lacks the capability.
func require(actor Actor, c capability) error {
	if !Can(actor.Role, c) {
		return fmt.Errorf("role %q may not %s: %w", actor.Role, c, core.ErrForbidden)
	}
	return nil
}
