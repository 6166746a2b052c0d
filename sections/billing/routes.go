package billing

import (
	"github.com/gin-gonic/gin"

	"github.com/MohamedNourTN/clinicback/sections"
	"github.com/MohamedNourTN/clinicback/sections/common/auth"
)

// RegisterRoutes registers billing routes
func RegisterRoutes(frontendRoutes, callbackRoutes *gin.RouterGroup, deps *sections.Dependencies, jwtManager *auth.JWTManager, adminAuth gin.HandlerFunc, engine *Engine, plans *PlanService, processor *WebhookProcessor, store *Store) {
	handler := NewHandler(deps, engine, plans, processor, store)

	// Public plan catalog
	catalog := frontendRoutes.Group("/api/v1/plans")
	{
		catalog.GET("", handler.ListPlans)
		catalog.GET("/:id", handler.GetPlan)
	}

	// Authenticated billing surface
	billing := frontendRoutes.Group("/api/v1/billing")
	billing.Use(auth.JWTAuthMiddleware(jwtManager))
	{
		billing.POST("/subscriptions", handler.CreateSubscription)
		billing.GET("/subscriptions", handler.ListSubscriptions)
		billing.GET("/subscriptions/:id", handler.GetSubscription)
		billing.POST("/subscriptions/:id/cancel", handler.CancelSubscription)
		billing.POST("/subscriptions/:id/pay-on-behalf", handler.PayOnBehalf)
		billing.GET("/transactions", handler.ListTransactions)
	}

	// Operator endpoints (API key + secret)
	admin := frontendRoutes.Group("/api/v1/admin/billing")
	admin.Use(adminAuth)
	{
		admin.POST("/plans", handler.CreatePlan)
		admin.PATCH("/plans/:id", handler.UpdatePlan)
		admin.POST("/plans/:id/default", handler.SetDefaultPlan)
		admin.POST("/plans/:id/archive", handler.ArchivePlan)
		admin.GET("/analytics", handler.Analytics)
		admin.POST("/sync/plans", handler.SyncPlans)
		admin.POST("/sync/transactions", handler.SyncTransactions)
	}

	// Webhook routes (no authentication, verified via Stripe signature)
	webhooks := callbackRoutes.Group("/stripe")
	{
		webhooks.POST("/webhook", handler.HandleWebhook)
	}
}
