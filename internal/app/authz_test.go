package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clinic-billing/internal/core"
)

func TestAdminHoldsEveryCapability(t *testing.T) {
	for _, c := range []capability{
		capManageUsers, capManageCatalog, capCreateInvoice, capRecordPayment,
		capIssueRefund, capVoidInvoice, capAdjustStock, capManagePurchase,
		capSupplierMoney,
	} {
		assert.True(t, Can(core.RoleAdmin, c), "admin should hold %s", c)
	}
}

func TestReceptionistHandlesFrontDeskMoney(t *testing.T) {
	assert.True(t, Can(core.RoleReceptionist, capCreateInvoice))
	assert.True(t, Can(core.RoleReceptionist, capRecordPayment))
	assert.True(t, Can(core.RoleReceptionist, capIssueRefund))

	assert.False(t, Can(core.RoleReceptionist, capVoidInvoice))
	assert.False(t, Can(core.RoleReceptionist, capManageUsers))
	assert.False(t, Can(core.RoleReceptionist, capSupplierMoney))
}

func TestDoctorOnlyCreatesInvoices(t *testing.T) {
	assert.True(t, Can(core.RoleDoctor, capCreateInvoice))

	assert.False(t, Can(core.RoleDoctor, capRecordPayment))
	assert.False(t, Can(core.RoleDoctor, capAdjustStock))
	assert.False(t, Can(core.RoleDoctor, capManageCatalog))
}

func TestAssistantRunsTheStockroom(t *testing.T) {
	assert.True(t, Can(core.RoleAssistant, capAdjustStock))
	assert.True(t, Can(core.RoleAssistant, capManagePurchase))

	assert.False(t, Can(core.RoleAssistant, capSupplierMoney))
	assert.False(t, Can(core.RoleAssistant, capCreateInvoice))
}

func TestUnknownRoleHoldsNothing(t *testing.T) {
	assert.False(t, Can("janitor", capCreateInvoice))
	assert.False(t, Can("", capManageUsers))
}

func TestRequireWrapsErrForbidden(t *testing.T) {
	err := require(Actor{UserID: 7, Username: "reena", Role: core.RoleReceptionist}, capVoidInvoice)
	assert.ErrorIs(t, err, core.ErrForbidden)

	assert.NoError(t, require(Actor{UserID: 1, Role: core.RoleAdmin}, capVoidInvoice))
}
