package tenants

import (
	"github.com/gin-gonic/gin"

	"github.com/MohamedNourTN/clinicback/sections"
	"github.com/MohamedNourTN/clinicback/sections/rbac"
)

// RegisterRoutes registers tenant onboarding routes
func RegisterRoutes(frontendRoutes *gin.RouterGroup, deps *sections.Dependencies, adminAuth gin.HandlerFunc, provisioner *rbac.Provisioner) {
	handler := NewHandler(deps, provisioner)

	admin := frontendRoutes.Group("/api/v1/admin/tenants")
	admin.Use(adminAuth)
	{
		admin.POST("", handler.CreateTenant)
		admin.GET("", handler.ListTenants)
		admin.GET("/:id", handler.GetTenant)
	}
}
