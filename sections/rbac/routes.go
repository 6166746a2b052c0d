package rbac

import (
	"github.com/gin-gonic/gin"

	"github.com/MohamedNourTN/clinicback/sections"
)

// RegisterRoutes registers provisioning routes
func RegisterRoutes(frontendRoutes *gin.RouterGroup, deps *sections.Dependencies, adminAuth gin.HandlerFunc, provisioner *Provisioner, migrator *Migrator) {
	handler := NewHandler(deps, provisioner, migrator)

	admin := frontendRoutes.Group("/api/v1/admin/rbac")
	admin.Use(adminAuth)
	{
		admin.POST("/tenants/:id/provision", handler.ProvisionTenant)
		admin.POST("/provision", handler.ProvisionAll)
		admin.POST("/migrate-legacy-roles", handler.MigrateLegacyRoles)
	}
}
