package billing

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections"
	"github.com/MohamedNourTN/clinicback/sections/models"
)

const maxWebhookBodyBytes = 1 << 16

// Handler handles billing requests
type Handler struct {
	logger    *slog.Logger
	deps      *sections.Dependencies
	engine    *Engine
	plans     *PlanService
	processor *WebhookProcessor
	store     *Store
}

// NewHandler creates a new billing handler
func NewHandler(deps *sections.Dependencies, engine *Engine, plans *PlanService, processor *WebhookProcessor, store *Store) *Handler {
	return &Handler{
		logger:    slog.With("handler", "BillingHandler"),
		deps:      deps,
		engine:    engine,
		plans:     plans,
		processor: processor,
		store:     store,
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, common.ApiResponse[any]{
		Success: false,
		Error:   common.MessageOf(err),
		Code:    string(common.CodeOf(err)),
	})
}

func pathID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, common.ValidationError("invalid id %q", c.Param("id"))
	}
	return uint(id), nil
}

func bindPage(c *gin.Context) common.PageRequest {
	page := common.PageRequest{}
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		page.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		page.Limit = v
	}
	page.Normalize()
	return page
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, common.ValidationError("invalid %s timestamp %q, expected RFC3339", name, raw)
	}
	return &t, nil
}

// PlanResponse is the catalog view of a plan with features decoded.
type PlanResponse struct {
	models.SubscriptionPlan
	FeatureList []string `json:"featureList"`
}

func planResponse(plan *models.SubscriptionPlan) PlanResponse {
	return PlanResponse{SubscriptionPlan: *plan, FeatureList: DecodeFeatures(plan.Features)}
}

func (h *Handler) ListPlans(c *gin.Context) {
	includeInactive := c.Query("includeInactive") == "true"
	plans, err := h.store.ListPlans(c.Request.Context(), includeInactive)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]PlanResponse, 0, len(plans))
	for i := range plans {
		out = append(out, planResponse(&plans[i]))
	}
	c.JSON(http.StatusOK, common.ApiResponse[[]PlanResponse]{Data: out, Success: true})
}

func (h *Handler) GetPlan(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	plan, err := h.store.GetPlan(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[PlanResponse]{Data: planResponse(plan), Success: true})
}

func (h *Handler) CreatePlan(c *gin.Context) {
	var req CreatePlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.plans.CreatePlan(c.Request.Context(), req, h.deps.Config.DefaultCurrency)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.ApiResponse[PlanResponse]{Data: planResponse(plan), Success: true})
}

func (h *Handler) UpdatePlan(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req UpdatePlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.plans.UpdatePlan(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[PlanResponse]{Data: planResponse(plan), Success: true})
}

func (h *Handler) SetDefaultPlan(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	plan, err := h.plans.SetDefault(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[PlanResponse]{Data: planResponse(plan), Success: true})
}

func (h *Handler) ArchivePlan(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.plans.ArchivePlan(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[any]{Success: true})
}

// CreateSubscriptionRequest is the direct-creation request body. Delegated
// payment fields travel together or not at all.
type CreateSubscriptionRequest struct {
	TenantID                 uint   `json:"tenantId" binding:"required"`
	PlanID                   uint   `json:"planId" binding:"required"`
	CustomerEmail            string `json:"customerEmail" binding:"required,email"`
	DelegatedPaymentMethodID string `json:"delegatedPaymentMethodId"`
	DelegatorEmail           string `json:"delegatorEmail" binding:"omitempty,email"`
}

// SubscriptionResponse wraps the local record, carrying the payment client
// secret only on the self-pay creation path.
type SubscriptionResponse struct {
	Subscription *models.TenantSubscription `json:"subscription"`
	ClientSecret string                     `json:"clientSecret,omitempty"`
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.engine.CreateSubscription(c.Request.Context(), CreateSubscriptionInput{
		TenantID:                 req.TenantID,
		PlanID:                   req.PlanID,
		CustomerEmail:            req.CustomerEmail,
		DelegatedPaymentMethodID: req.DelegatedPaymentMethodID,
		DelegatorEmail:           req.DelegatorEmail,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.ApiResponse[SubscriptionResponse]{
		Data:    SubscriptionResponse{Subscription: result.Subscription, ClientSecret: result.ClientSecret},
		Success: true,
	})
}

func (h *Handler) ListSubscriptions(c *gin.Context) {
	filter := SubscriptionFilter{Status: c.Query("status")}
	if raw := c.Query("tenantId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			h.respondError(c, common.ValidationError("invalid tenantId %q", raw))
			return
		}
		filter.TenantID = uint(id)
	}
	page := bindPage(c)

	subs, total, err := h.store.ListSubscriptions(c.Request.Context(), filter, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[common.PageData[models.TenantSubscription]]{
		Data:    common.PageData[models.TenantSubscription]{Items: subs, Total: total, Page: page.Page, Limit: page.Limit},
		Success: true,
	})
}

func (h *Handler) GetSubscription(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	sub, err := h.store.GetSubscription(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[*models.TenantSubscription]{Data: sub, Success: true})
}

type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"atPeriodEnd"`
}

func (h *Handler) CancelSubscription(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.engine.CancelSubscription(c.Request.Context(), id, req.AtPeriodEnd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[*models.TenantSubscription]{Data: sub, Success: true})
}

type PayOnBehalfRequest struct {
	DelegatorEmail  string `json:"delegatorEmail" binding:"required,email"`
	PaymentMethodID string `json:"paymentMethodId" binding:"required"`
}

func (h *Handler) PayOnBehalf(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req PayOnBehalfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.engine.PayOnBehalf(c.Request.Context(), PayOnBehalfInput{
		SubscriptionID:  id,
		DelegatorEmail:  req.DelegatorEmail,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[*models.TenantSubscription]{Data: sub, Success: true})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	filter := TransactionFilter{
		Status:     c.Query("status"),
		Type:       c.Query("type"),
		CustomerID: c.Query("customerId"),
	}
	if raw := c.Query("tenantId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			h.respondError(c, common.ValidationError("invalid tenantId %q", raw))
			return
		}
		filter.TenantID = uint(id)
	}
	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		h.respondError(c, err)
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		h.respondError(c, err)
		return
	}
	page := bindPage(c)

	txns, total, err := h.store.ListTransactions(c.Request.Context(), filter, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[common.PageData[models.StripeTransaction]]{
		Data:    common.PageData[models.StripeTransaction]{Items: txns, Total: total, Page: page.Page, Limit: page.Limit},
		Success: true,
	})
}

func (h *Handler) Analytics(c *gin.Context) {
	from, err := queryTime(c, "from")
	if err != nil {
		h.respondError(c, err)
		return
	}
	to, err := queryTime(c, "to")
	if err != nil {
		h.respondError(c, err)
		return
	}
	report, err := h.store.Analytics(c.Request.Context(), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[*AnalyticsReport]{Data: report, Success: true})
}

func (h *Handler) SyncPlans(c *gin.Context) {
	report, err := h.engine.SyncPlans(c.Request.Context(), h.deps.Config.SyncPageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[*SyncReport]{Data: report, Success: true})
}

func (h *Handler) SyncTransactions(c *gin.Context) {
	report, err := h.engine.SyncTransactions(c.Request.Context(), h.deps.Config.SyncPageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ApiResponse[*SyncReport]{Data: report, Success: true})
}

// HandleWebhook receives gateway event deliveries. Anything after a valid
// signature is acknowledged with 200 so the gateway stops retrying.
func (h *Handler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Error("Failed to read webhook body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := h.processor.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
