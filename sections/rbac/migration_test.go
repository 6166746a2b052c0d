package rbac

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/models"
	"github.com/MohamedNourTN/clinicback/testutil"
)

func provisionedTenant(t *testing.T, db *gorm.DB) *models.Tenant {
	t.Helper()
	tenant := testutil.TestTenant(t, db)
	_, err := NewProvisioner(db).ProvisionTenant(context.Background(), tenant.ID)
	require.NoError(t, err)
	return tenant
}

func TestMigrateLegacyRolesToMatchingRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	mig := NewMigrator(db)
	ctx := context.Background()

	tenant := provisionedTenant(t, db)
	clinic := testutil.TestClinic(t, db, tenant.ID)
	user := testutil.TestUser(t, db)
	link := testutil.TestUserClinic(t, db, user.ID, clinic.ID, testutil.WithLegacyRole("doctor"))

	report, err := mig.MigrateLegacyRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	assert.Zero(t, report.Skipped)

	var migrated models.UserClinic
	require.NoError(t, db.Preload("Roles").First(&migrated, link.ID).Error)
	require.NotNil(t, migrated.PrimaryRoleID)

	var role models.Role
	require.NoError(t, db.First(&role, *migrated.PrimaryRoleID).Error)
	assert.Equal(t, "doctor", role.Name)
	assert.Equal(t, tenant.ID, role.TenantID)
	require.Len(t, migrated.Roles, 1)
	assert.Equal(t, role.ID, migrated.Roles[0].ID)
}

func TestMigrateLegacyRolesFallsBackToStaff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	mig := NewMigrator(db)
	ctx := context.Background()

	tenant := provisionedTenant(t, db)
	clinic := testutil.TestClinic(t, db, tenant.ID)

	unknown := testutil.TestUserClinic(t, db, testutil.TestUser(t, db).ID, clinic.ID,
		testutil.WithLegacyRole("janitor"))
	empty := testutil.TestUserClinic(t, db, testutil.TestUser(t, db).ID, clinic.ID)

	report, err := mig.MigrateLegacyRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Migrated)

	for _, id := range []uint{unknown.ID, empty.ID} {
		var migrated models.UserClinic
		require.NoError(t, db.First(&migrated, id).Error)
		require.NotNil(t, migrated.PrimaryRoleID)

		var role models.Role
		require.NoError(t, db.First(&role, *migrated.PrimaryRoleID).Error)
		assert.Equal(t, common.DEFAULT_STAFF_ROLE, role.Name)
	}
}

func TestMigrateLegacyRolesMissingFallbackSkips(t *testing.T) {
	db := testutil.SetupTestDB(t)
	mig := NewMigrator(db)

	// Tenant was never provisioned, so no fallback role exists.
	tenant := testutil.TestTenant(t, db)
	clinic := testutil.TestClinic(t, db, tenant.ID)
	link := testutil.TestUserClinic(t, db, testutil.TestUser(t, db).ID, clinic.ID,
		testutil.WithLegacyRole("doctor"))

	report, err := mig.MigrateLegacyRoles(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Migrated)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)

	var untouched models.UserClinic
	require.NoError(t, db.First(&untouched, link.ID).Error)
	assert.Nil(t, untouched.PrimaryRoleID)
}

func TestMigrateLegacyRolesSkipsAlreadyMigrated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	mig := NewMigrator(db)
	ctx := context.Background()

	tenant := provisionedTenant(t, db)
	clinic := testutil.TestClinic(t, db, tenant.ID)

	var admin models.Role
	require.NoError(t, db.Where("tenant_id = ? AND name = ?", tenant.ID, "admin").First(&admin).Error)
	testutil.TestUserClinic(t, db, testutil.TestUser(t, db).ID, clinic.ID,
		func(uc *models.UserClinic) { uc.PrimaryRoleID = &admin.ID })

	report, err := mig.MigrateLegacyRoles(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Migrated)
	assert.Zero(t, report.Skipped)
}

func TestMigrateLegacyRolesWritesAudit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	mig := NewMigrator(db)
	ctx := context.Background()

	tenant := provisionedTenant(t, db)
	clinic := testutil.TestClinic(t, db, tenant.ID)
	link := testutil.TestUserClinic(t, db, testutil.TestUser(t, db).ID, clinic.ID,
		testutil.WithLegacyRole("receptionist"))

	_, err := mig.MigrateLegacyRoles(ctx)
	require.NoError(t, err)

	var audit models.RoleAudit
	require.NoError(t, db.Where("user_clinic_id = ?", link.ID).First(&audit).Error)
	assert.Equal(t, tenant.ID, audit.TenantID)
	assert.Equal(t, migrationAuditAction, audit.Action)
	assert.Zero(t, audit.ActorID)

	var before map[string]any
	require.NoError(t, json.Unmarshal([]byte(audit.Before), &before))
	assert.Equal(t, "receptionist", before["legacyRole"])

	var after map[string]any
	require.NoError(t, json.Unmarshal([]byte(audit.After), &after))
	assert.Equal(t, "receptionist", after["roleName"])
}
