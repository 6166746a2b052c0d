package access

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections"
	"github.com/MohamedNourTN/clinicback/sections/common/auth"
)

// RegisterRoutes registers access check routes
func RegisterRoutes(frontendRoutes *gin.RouterGroup, deps *sections.Dependencies, jwtManager *auth.JWTManager, gate *Gate) {
	routes := frontendRoutes.Group("/api/v1/access")
	routes.Use(auth.JWTAuthMiddleware(jwtManager))
	{
		// Lets a UI ask up front whether the tenant may enter the app.
		routes.GET("/check", func(c *gin.Context) {
			claims, ok := auth.GetClaimsFromContext(c)
			if !ok {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			decision, err := gate.Check(c.Request.Context(), claims.TenantID)
			if err != nil {
				c.JSON(common.HTTPStatus(err), gin.H{"error": common.MessageOf(err)})
				return
			}
			c.JSON(http.StatusOK, common.ApiResponse[*Decision]{Data: decision, Success: true})
		})
	}
}
