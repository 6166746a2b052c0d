package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// TenantMiddlewareConfig holds configuration for tenant resolution
type TenantMiddlewareConfig struct {
	// HeaderName is the HTTP header to extract tenant from (e.g., "X-Tenant-ID")
	HeaderName string
	// SkipPaths are paths that don't require tenant context
	SkipPaths []string
}

// DefaultTenantMiddlewareConfig returns the default configuration
func DefaultTenantMiddlewareConfig() *TenantMiddlewareConfig {
	return &TenantMiddlewareConfig{
		HeaderName: "X-Tenant-ID",
		SkipPaths: []string{
			"/api/v1/auth/",
			"/api/v1/plans",
			"/health",
		},
	}
}

// TenantFromHeaderMiddleware resolves the numeric tenant id from a header,
// query parameter or JWT claims, in that order.
func TenantFromHeaderMiddleware(cfg *TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip tenant resolution for certain paths
		for _, skipPath := range cfg.SkipPaths {
			if len(c.Request.URL.Path) >= len(skipPath) && c.Request.URL.Path[:len(skipPath)] == skipPath {
				c.Next()
				return
			}
		}

		raw := c.GetHeader(cfg.HeaderName)
		if raw == "" {
			// Also check query param as fallback
			raw = c.Query("tenant")
		}

		var tenantID uint
		if raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID format"})
				c.Abort()
				return
			}
			tenantID = uint(parsed)
		} else if claims, ok := GetClaimsFromContext(c); ok {
			tenantID = claims.TenantID
		}

		if tenantID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant ID is required"})
			c.Abort()
			return
		}

		slog.Debug("Tenant context set", "tenant_id", tenantID)
		c.Set("tenantId", tenantID)
		c.Next()
	}
}

// GetTenantIDFromContext retrieves the tenant ID from the Gin context
func GetTenantIDFromContext(c *gin.Context) (uint, bool) {
	tenantID, exists := c.Get("tenantId")
	if !exists {
		return 0, false
	}
	id, ok := tenantID.(uint)
	return id, ok
}
