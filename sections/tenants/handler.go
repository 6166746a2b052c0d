package tenants

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections"
	"github.com/MohamedNourTN/clinicback/sections/models"
	"github.com/MohamedNourTN/clinicback/sections/rbac"
)

// Handler handles tenant onboarding requests
type Handler struct {
	logger      *slog.Logger
	deps        *sections.Dependencies
	provisioner *rbac.Provisioner
}

// NewHandler creates a new tenants handler
func NewHandler(deps *sections.Dependencies, provisioner *rbac.Provisioner) *Handler {
	return &Handler{
		logger:      slog.With("handler", "TenantsHandler"),
		deps:        deps,
		provisioner: provisioner,
	}
}

type CreateTenantRequest struct {
	Name         string `json:"name" binding:"required"`
	DisplayName  string `json:"displayName"`
	ContactEmail string `json:"contactEmail" binding:"omitempty,email"`
}

// TenantResponse pairs the created tenant with its provisioning report.
type TenantResponse struct {
	Tenant       *models.Tenant     `json:"tenant"`
	Provisioning *rbac.TenantReport `json:"provisioning,omitempty"`
}

// CreateTenant creates a tenant and seeds its default roles and
// permissions in one request.
func (h *Handler) CreateTenant(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant := &models.Tenant{
		Name:         req.Name,
		DisplayName:  req.DisplayName,
		ContactEmail: req.ContactEmail,
		Active:       true,
	}
	if err := h.deps.DB.DB.WithContext(c.Request.Context()).Create(tenant).Error; err != nil {
		h.logger.Error("Failed to create tenant", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tenant"})
		return
	}

	report, err := h.provisioner.ProvisionTenant(c.Request.Context(), tenant.ID)
	if err != nil {
		// The tenant exists; provisioning can be re-run via the admin route.
		h.logger.Error("Failed to provision new tenant", "tenant_id", tenant.ID, "error", err)
	}

	c.JSON(http.StatusCreated, common.ApiResponse[TenantResponse]{
		Data:    TenantResponse{Tenant: tenant, Provisioning: report},
		Success: true,
	})
}

func (h *Handler) GetTenant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}

	var tenant models.Tenant
	if err := h.deps.DB.DB.WithContext(c.Request.Context()).First(&tenant, uint(id)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		h.logger.Error("Failed to get tenant", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get tenant"})
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[models.Tenant]{Data: tenant, Success: true})
}

func (h *Handler) ListTenants(c *gin.Context) {
	var tenants []models.Tenant
	query := h.deps.DB.DB.WithContext(c.Request.Context()).Order("id")
	if c.Query("includeInactive") != "true" {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&tenants).Error; err != nil {
		h.logger.Error("Failed to list tenants", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tenants"})
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[[]models.Tenant]{Data: tenants, Success: true})
}
