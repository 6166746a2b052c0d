package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections"
)

// Handler handles provisioning and migration requests
type Handler struct {
	logger      *slog.Logger
	deps        *sections.Dependencies
	provisioner *Provisioner
	migrator    *Migrator
}

// NewHandler creates a new rbac handler
func NewHandler(deps *sections.Dependencies, provisioner *Provisioner, migrator *Migrator) *Handler {
	return &Handler{
		logger:      slog.With("handler", "RBACHandler"),
		deps:        deps,
		provisioner: provisioner,
		migrator:    migrator,
	}
}

func (h *Handler) ProvisionTenant(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}

	report, err := h.provisioner.ProvisionTenant(c.Request.Context(), uint(id))
	if err != nil {
		h.logger.Error("Failed to provision tenant", "tenant_id", id, "error", err)
		c.JSON(common.HTTPStatus(err), gin.H{"error": common.MessageOf(err)})
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[*TenantReport]{Data: report, Success: true})
}

func (h *Handler) ProvisionAll(c *gin.Context) {
	report, err := h.provisioner.ProvisionAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to run provisioning batch", "error", err)
		c.JSON(common.HTTPStatus(err), gin.H{"error": common.MessageOf(err)})
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[*Report]{Data: report, Success: true})
}

func (h *Handler) MigrateLegacyRoles(c *gin.Context) {
	report, err := h.migrator.MigrateLegacyRoles(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to run legacy role migration", "error", err)
		c.JSON(common.HTTPStatus(err), gin.H{"error": common.MessageOf(err)})
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[*MigrationReport]{Data: report, Success: true})
}
