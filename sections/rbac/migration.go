package rbac

import (
	"context"
	"encoding/json"
	"log/slog"

	"gorm.io/gorm"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/models"
)

const migrationAuditAction = "legacy_role_migration"

// MigrationReport summarizes a legacy role migration run.
type MigrationReport struct {
	Migrated int      `json:"migrated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Migrator performs the one-time transition from the legacy single-role
// field on user-clinic links to per-tenant role assignments.
type Migrator struct {
	logger *slog.Logger
	db     *gorm.DB
}

func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{
		logger: slog.With("service", "LegacyRoleMigrator"),
		db:     db,
	}
}

// MigrateLegacyRoles assigns tenant-scoped roles to every user-clinic link
// still carrying only the legacy role field. The legacy name resolves to
// the same-named system role in the link's tenant, falling back to the
// default staff role when no such role exists. Per-record failures are
// counted as skipped.
func (m *Migrator) MigrateLegacyRoles(ctx context.Context) (*MigrationReport, error) {
	var links []models.UserClinic
	err := m.db.WithContext(ctx).
		Preload("Clinic").
		Where("primary_role_id IS NULL").
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	report := &MigrationReport{}
	for i := range links {
		if err := m.migrateLink(ctx, &links[i]); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, err.Error())
			m.logger.Warn("Skipping user-clinic link", "user_clinic_id", links[i].ID, "error", err)
			continue
		}
		report.Migrated++
	}

	m.logger.Info("Legacy role migration finished",
		"migrated", report.Migrated, "skipped", report.Skipped)
	return report, nil
}

func (m *Migrator) migrateLink(ctx context.Context, link *models.UserClinic) error {
	if link.Clinic.ID == 0 {
		return common.NotFoundError("user-clinic link %d has no resolvable clinic", link.ID)
	}
	tenantID := link.Clinic.TenantID

	role, err := m.resolveRole(ctx, tenantID, link.LegacyRole)
	if err != nil {
		return err
	}

	before, _ := json.Marshal(map[string]any{"legacyRole": link.LegacyRole})
	after, _ := json.Marshal(map[string]any{"primaryRoleId": role.ID, "roleName": role.Name})

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(link).Update("primary_role_id", role.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(link).Association("Roles").Append(role); err != nil {
			return err
		}
		return tx.Create(&models.RoleAudit{
			TenantID:     tenantID,
			UserClinicID: link.ID,
			Action:       migrationAuditAction,
			Before:       string(before),
			After:        string(after),
		}).Error
	})
}

// resolveRole finds the tenant's system role matching the legacy name, or
// the staff fallback when the name is empty or unknown.
func (m *Migrator) resolveRole(ctx context.Context, tenantID uint, legacyName string) (*models.Role, error) {
	var role models.Role
	if legacyName != "" {
		err := m.db.WithContext(ctx).
			Where("tenant_id = ? AND name = ? AND is_system_role = ?", tenantID, legacyName, true).
			First(&role).Error
		if err == nil {
			return &role, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	err := m.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, common.DEFAULT_STAFF_ROLE).
		First(&role).Error
	if err == gorm.ErrRecordNotFound {
		return nil, common.NotFoundError("tenant %d has no %q fallback role, provision it first",
			tenantID, common.DEFAULT_STAFF_ROLE)
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}
