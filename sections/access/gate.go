package access

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/billing"
	"github.com/MohamedNourTN/clinicback/sections/common/auth"
	"github.com/MohamedNourTN/clinicback/sections/models"
)

// Deny reasons surfaced to clients.
const (
	ReasonNoSubscription = "no_subscription"
	ReasonTrialExpired   = "trial_expired"
	ReasonPastDue        = "past_due"
	ReasonCanceled       = "canceled"
	ReasonUnpaid         = "unpaid"
	ReasonIncomplete     = "incomplete"
	ReasonUnknownStatus  = "unknown_status"
)

// Decision is the outcome of a tenant access check.
type Decision struct {
	Allowed      bool                       `json:"allowed"`
	Reason       string                     `json:"reason,omitempty"`
	Subscription *models.TenantSubscription `json:"subscription,omitempty"`
}

// Gate answers whether a tenant's subscription entitles it to the service.
// It reads only local records; gateway truth arrives via the webhook and
// sync paths.
type Gate struct {
	logger *slog.Logger
	store  *billing.Store
	now    func() time.Time
}

// NewGate creates an access gate. now defaults to time.Now when nil.
func NewGate(store *billing.Store, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{
		logger: slog.With("service", "AccessGate"),
		store:  store,
		now:    now,
	}
}

// Check evaluates the tenant's most recent subscription. Unknown statuses
// and missing records deny.
func (g *Gate) Check(ctx context.Context, tenantID uint) (*Decision, error) {
	sub, err := g.store.LatestSubscriptionForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &Decision{Allowed: false, Reason: ReasonNoSubscription}, nil
	}

	decision := &Decision{Subscription: sub}
	switch billing.SubscriptionStatus(sub.Status) {
	case billing.StatusActive:
		decision.Allowed = true
	case billing.StatusTrialing:
		if sub.TrialEnd != nil && !g.now().Before(*sub.TrialEnd) {
			decision.Reason = ReasonTrialExpired
		} else {
			decision.Allowed = true
		}
	case billing.StatusPastDue:
		decision.Reason = ReasonPastDue
	case billing.StatusCanceled:
		decision.Reason = ReasonCanceled
	case billing.StatusUnpaid:
		decision.Reason = ReasonUnpaid
	case billing.StatusIncomplete, billing.StatusIncompleteExpired:
		decision.Reason = ReasonIncomplete
	default:
		g.logger.Warn("Denying access for unrecognized subscription status",
			"tenant_id", tenantID, "status", sub.Status)
		decision.Reason = ReasonUnknownStatus
	}
	return decision, nil
}

// RequireSubscription blocks requests from tenants without an entitling
// subscription. Platform super admins bypass the gate.
func RequireSubscription(gate *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := auth.GetClaimsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if claims.Role == common.ROLE_SUPER_ADMIN {
			c.Next()
			return
		}

		decision, err := gate.Check(c.Request.Context(), claims.TenantID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to check subscription"})
			return
		}
		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":  "subscription required",
				"reason": decision.Reason,
			})
			return
		}
		c.Next()
	}
}
