package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/models"
	"github.com/MohamedNourTN/clinicback/testutil"
)

func TestProvisionTenantSeedsCatalog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	prov := NewProvisioner(db)
	ctx := context.Background()

	tenant := testutil.TestTenant(t, db)
	report, err := prov.ProvisionTenant(ctx, tenant.ID)
	require.NoError(t, err)

	assert.Equal(t, len(DefaultPermissions), report.PermissionsCreated)
	assert.Equal(t, len(DefaultRoles), report.RolesCreated)
	assert.Zero(t, report.PermissionsUpdated)
	assert.Zero(t, report.RolesUpdated)

	var permCount, roleCount int64
	require.NoError(t, db.Model(&models.Permission{}).Where("tenant_id = ?", tenant.ID).Count(&permCount).Error)
	require.NoError(t, db.Model(&models.Role{}).Where("tenant_id = ?", tenant.ID).Count(&roleCount).Error)
	assert.EqualValues(t, len(DefaultPermissions), permCount)
	assert.EqualValues(t, len(DefaultRoles), roleCount)

	var admin models.Role
	require.NoError(t, db.Preload("Permissions").
		Where("tenant_id = ? AND name = ?", tenant.ID, "admin").First(&admin).Error)
	assert.True(t, admin.IsSystemRole)
	assert.Len(t, admin.Permissions, len(DefaultPermissions))

	var staff models.Role
	require.NoError(t, db.Preload("Permissions").
		Where("tenant_id = ? AND name = ?", tenant.ID, common.DEFAULT_STAFF_ROLE).First(&staff).Error)
	assert.Len(t, staff.Permissions, 2)
}

func TestProvisionTenantIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	prov := NewProvisioner(db)
	ctx := context.Background()

	tenant := testutil.TestTenant(t, db)
	_, err := prov.ProvisionTenant(ctx, tenant.ID)
	require.NoError(t, err)

	report, err := prov.ProvisionTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Zero(t, report.PermissionsCreated)
	assert.Zero(t, report.PermissionsUpdated)
	assert.Zero(t, report.RolesCreated)
	// Roles re-sync their grants on every run.
	assert.Equal(t, len(DefaultRoles), report.RolesUpdated)

	var permCount int64
	require.NoError(t, db.Model(&models.Permission{}).Where("tenant_id = ?", tenant.ID).Count(&permCount).Error)
	assert.EqualValues(t, len(DefaultPermissions), permCount)
}

func TestProvisionTenantRepairsDriftedMetadata(t *testing.T) {
	db := testutil.SetupTestDB(t)
	prov := NewProvisioner(db)
	ctx := context.Background()

	tenant := testutil.TestTenant(t, db)
	_, err := prov.ProvisionTenant(ctx, tenant.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Permission{}).
		Where("tenant_id = ? AND name = ?", tenant.ID, "patients.read").
		Update("display_name", "Renamed by operator").Error)

	report, err := prov.ProvisionTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PermissionsUpdated)
	assert.Zero(t, report.PermissionsCreated)

	var perm models.Permission
	require.NoError(t, db.Where("tenant_id = ? AND name = ?", tenant.ID, "patients.read").First(&perm).Error)
	assert.Equal(t, "View patients", perm.DisplayName)
}

func TestProvisionTenantScopesCatalogPerTenant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	prov := NewProvisioner(db)
	ctx := context.Background()

	first := testutil.TestTenant(t, db)
	second := testutil.TestTenant(t, db)

	_, err := prov.ProvisionTenant(ctx, first.ID)
	require.NoError(t, err)
	report, err := prov.ProvisionTenant(ctx, second.ID)
	require.NoError(t, err)

	// The second tenant gets its own copies, nothing is shared.
	assert.Equal(t, len(DefaultPermissions), report.PermissionsCreated)
	assert.Equal(t, len(DefaultRoles), report.RolesCreated)

	var total int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&total).Error)
	assert.EqualValues(t, 2*len(DefaultPermissions), total)
}

func TestProvisionTenantUnknownTenant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	prov := NewProvisioner(db)

	_, err := prov.ProvisionTenant(context.Background(), 9999)
	require.Error(t, err)
	assert.Equal(t, common.CodeNotFound, common.CodeOf(err))
}

func TestProvisionAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	prov := NewProvisioner(db)
	ctx := context.Background()

	testutil.TestTenant(t, db)
	testutil.TestTenant(t, db)
	testutil.TestTenant(t, db, func(tn *models.Tenant) { tn.Active = false })

	report, err := prov.ProvisionAll(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Tenants, 2)
	assert.Zero(t, report.Skipped)
	for _, tr := range report.Tenants {
		assert.Equal(t, len(DefaultRoles), tr.RolesCreated)
	}
}
