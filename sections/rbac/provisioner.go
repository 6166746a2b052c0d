package rbac

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/models"
)

// TenantReport counts provisioning outcomes for one tenant.
type TenantReport struct {
	TenantID           uint `json:"tenantId"`
	PermissionsCreated int  `json:"permissionsCreated"`
	PermissionsUpdated int  `json:"permissionsUpdated"`
	RolesCreated       int  `json:"rolesCreated"`
	RolesUpdated       int  `json:"rolesUpdated"`
}

// Report aggregates a provisioning run over a tenant batch. Tenants whose
// provisioning failed are counted as skipped, not fatal.
type Report struct {
	Tenants []TenantReport `json:"tenants"`
	Skipped int            `json:"skipped"`
	Errors  []string       `json:"errors,omitempty"`
}

// Provisioner seeds the default permission and role catalogs into tenants.
// Every operation upserts by (tenant id, name), so re-running is safe.
type Provisioner struct {
	logger *slog.Logger
	db     *gorm.DB
}

func NewProvisioner(db *gorm.DB) *Provisioner {
	return &Provisioner{
		logger: slog.With("service", "PermissionProvisioner"),
		db:     db,
	}
}

// ProvisionTenant seeds one tenant's catalog inside a single transaction.
func (p *Provisioner) ProvisionTenant(ctx context.Context, tenantID uint) (*TenantReport, error) {
	var tenant models.Tenant
	if err := p.db.WithContext(ctx).First(&tenant, tenantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, common.NotFoundError("tenant %d not found", tenantID)
		}
		return nil, err
	}

	report := &TenantReport{TenantID: tenantID}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perms, err := p.upsertPermissions(tx, tenantID, report)
		if err != nil {
			return err
		}
		return p.upsertRoles(tx, tenantID, perms, report)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Tenant provisioned", "tenant_id", tenantID,
		"permissions_created", report.PermissionsCreated, "roles_created", report.RolesCreated)
	return report, nil
}

// upsertPermissions seeds the permission catalog and returns the tenant's
// permissions indexed by name for role wiring.
func (p *Provisioner) upsertPermissions(tx *gorm.DB, tenantID uint, report *TenantReport) (map[string]models.Permission, error) {
	byName := make(map[string]models.Permission, len(DefaultPermissions))
	for _, tmpl := range DefaultPermissions {
		var perm models.Permission
		err := tx.Where("tenant_id = ? AND name = ?", tenantID, tmpl.Name).First(&perm).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			perm = models.Permission{
				TenantID:    tenantID,
				Name:        tmpl.Name,
				DisplayName: tmpl.DisplayName,
				Description: tmpl.Description,
			}
			if err := tx.Create(&perm).Error; err != nil {
				return nil, err
			}
			report.PermissionsCreated++
		case err != nil:
			return nil, err
		default:
			if perm.DisplayName != tmpl.DisplayName || perm.Description != tmpl.Description {
				perm.DisplayName = tmpl.DisplayName
				perm.Description = tmpl.Description
				if err := tx.Save(&perm).Error; err != nil {
					return nil, err
				}
				report.PermissionsUpdated++
			}
		}
		byName[perm.Name] = perm
	}
	return byName, nil
}

func (p *Provisioner) upsertRoles(tx *gorm.DB, tenantID uint, perms map[string]models.Permission, report *TenantReport) error {
	for _, tmpl := range DefaultRoles {
		grants := make([]models.Permission, 0, len(tmpl.Permissions))
		for _, name := range tmpl.Permissions {
			perm, ok := perms[name]
			if !ok {
				p.logger.Warn("Role template references unknown permission",
					"role", tmpl.Name, "permission", name)
				continue
			}
			grants = append(grants, perm)
		}

		var role models.Role
		err := tx.Where("tenant_id = ? AND name = ?", tenantID, tmpl.Name).First(&role).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			role = models.Role{
				TenantID:     tenantID,
				Name:         tmpl.Name,
				DisplayName:  tmpl.DisplayName,
				Description:  tmpl.Description,
				IsSystemRole: true,
				Permissions:  grants,
			}
			if err := tx.Create(&role).Error; err != nil {
				return err
			}
			report.RolesCreated++
		case err != nil:
			return err
		default:
			role.DisplayName = tmpl.DisplayName
			role.Description = tmpl.Description
			role.IsSystemRole = true
			if err := tx.Save(&role).Error; err != nil {
				return err
			}
			if err := tx.Model(&role).Association("Permissions").Replace(grants); err != nil {
				return err
			}
			report.RolesUpdated++
		}
	}
	return nil
}

// ProvisionAll runs the provisioner over every active tenant. Per-tenant
// failures are recorded and skipped.
func (p *Provisioner) ProvisionAll(ctx context.Context) (*Report, error) {
	var tenants []models.Tenant
	if err := p.db.WithContext(ctx).Where("active = ?", true).Find(&tenants).Error; err != nil {
		return nil, err
	}

	report := &Report{}
	for _, tenant := range tenants {
		tenantReport, err := p.ProvisionTenant(ctx, tenant.ID)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, err.Error())
			p.logger.Error("Skipping tenant after provisioning failure",
				"tenant_id", tenant.ID, "error", err)
			continue
		}
		report.Tenants = append(report.Tenants, *tenantReport)
	}

	p.logger.Info("Provisioning run finished", "tenants", len(report.Tenants), "skipped", report.Skipped)
	return report, nil
}
