package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/models"
	"github.com/MohamedNourTN/clinicback/services"
	"github.com/MohamedNourTN/clinicback/storage"
)

const createLockTTL = 30 * time.Second

// Engine keeps local subscription and transaction records consistent with
// gateway-side truth across direct creation, webhook delivery and delegated
// payment flows.
type Engine struct {
	logger  *slog.Logger
	store   *Store
	gateway services.PaymentGateway
	// locks serializes subscription creation per tenant; nil disables
	// locking (the partial unique index still backs the invariant).
	locks *storage.LockManager
}

// NewEngine creates a reconciliation engine.
func NewEngine(store *Store, gateway services.PaymentGateway, locks *storage.LockManager) *Engine {
	return &Engine{
		logger:  slog.With("service", "ReconciliationEngine"),
		store:   store,
		gateway: gateway,
		locks:   locks,
	}
}

// CreateSubscriptionInput carries the direct-creation parameters. When
// DelegatedPaymentMethodID is set, the first invoice is paid synchronously
// with the delegator's stored payment method instead of returning a client
// payment secret.
type CreateSubscriptionInput struct {
	TenantID                 uint
	PlanID                   uint
	CustomerEmail            string
	DelegatedPaymentMethodID string
	DelegatorEmail           string
}

// CreateSubscriptionResult is the outcome of a direct creation. The client
// secret is only populated on the self-pay path.
type CreateSubscriptionResult struct {
	Subscription *models.TenantSubscription
	ClientSecret string
}

// CreateSubscription provisions a gateway subscription for a tenant and
// persists the local record snapshotting the plan's commercial terms.
func (e *Engine) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*CreateSubscriptionResult, error) {
	if in.CustomerEmail == "" {
		return nil, common.ValidationError("customer email is required")
	}
	if in.DelegatedPaymentMethodID != "" && in.DelegatorEmail == "" {
		return nil, common.ValidationError("delegator email is required for delegated payment")
	}

	tenant, err := e.store.GetTenant(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	plan, err := e.store.GetPlan(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, common.ValidationError("plan %q is archived", plan.Name)
	}

	if e.locks != nil {
		release, err := e.locks.Acquire(ctx, fmt.Sprintf("subscription:create:%d", in.TenantID), createLockTTL)
		if err != nil {
			return nil, common.ConflictError("subscription creation already in progress for tenant %d", in.TenantID)
		}
		defer release()
	}

	latest, err := e.store.LatestSubscriptionForTenant(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	if latest != nil && !SubscriptionStatus(latest.Status).Terminal() {
		return nil, common.ConflictError("tenant %d already holds subscription %s in status %s",
			in.TenantID, latest.StripeSubscriptionID, latest.Status)
	}

	cust, err := e.resolveOrCreateCustomer(ctx, tenant, in.CustomerEmail)
	if err != nil {
		return nil, err
	}

	gwSub, err := e.gateway.CreateSubscription(ctx, services.CreateSubscriptionParams{
		CustomerID:      cust.ID,
		PriceID:         plan.StripePriceID,
		TrialPeriodDays: plan.TrialPeriodDays,
		Metadata: map[string]string{
			"tenant_id": fmt.Sprintf("%d", in.TenantID),
			"plan_id":   fmt.Sprintf("%d", in.PlanID),
		},
	})
	if err != nil {
		return nil, common.UpstreamError(err, "failed to create gateway subscription")
	}

	clientSecret := gwSub.ClientSecret

	if in.DelegatedPaymentMethodID != "" {
		settled, err := e.settleFirstInvoice(ctx, gwSub, in)
		if err != nil {
			// The incomplete gateway subscription is left behind as an
			// orphan; the gateway expires it after its confirmation window.
			e.logger.Warn("Delegated payment failed, gateway subscription left incomplete",
				"subscription_id", gwSub.ID, "tenant_id", in.TenantID, "error", err)
			return nil, err
		}
		gwSub = settled
		clientSecret = ""
	}

	sub := e.buildLocalRecord(gwSub, plan, in.TenantID)
	if err := e.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	e.logger.Info("Subscription created", "tenant_id", in.TenantID,
		"stripe_id", gwSub.ID, "status", sub.Status)
	return &CreateSubscriptionResult{Subscription: sub, ClientSecret: clientSecret}, nil
}

// resolveOrCreateCustomer finds the gateway customer by email, creating one
// with a deterministic idempotency key when absent.
func (e *Engine) resolveOrCreateCustomer(ctx context.Context, tenant *models.Tenant, email string) (*services.Customer, error) {
	cust, err := e.gateway.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, common.UpstreamError(err, "failed to look up gateway customer")
	}
	if cust != nil {
		return cust, nil
	}

	cust, err = e.gateway.CreateCustomer(ctx, services.CreateCustomerParams{
		Email:          email,
		Name:           tenant.Name,
		IdempotencyKey: common.IdempotencyKey("customer", fmt.Sprintf("%d", tenant.ID), email),
		Metadata:       map[string]string{"tenant_id": fmt.Sprintf("%d", tenant.ID)},
	})
	if err != nil {
		return nil, common.UpstreamError(err, "failed to create gateway customer")
	}
	return cust, nil
}

// settleFirstInvoice pays a freshly created subscription's first invoice
// with the delegator's payment method and refreshes the gateway view.
func (e *Engine) settleFirstInvoice(ctx context.Context, gwSub *services.GatewaySubscription, in CreateSubscriptionInput) (*services.GatewaySubscription, error) {
	if gwSub.LatestInvoiceID == "" {
		return nil, common.UpstreamError(nil, "gateway subscription %s has no invoice", gwSub.ID)
	}

	pm, err := e.verifyDelegatorPaymentMethod(ctx, in.DelegatorEmail, in.DelegatedPaymentMethodID)
	if err != nil {
		return nil, err
	}

	inv, err := e.gateway.GetInvoice(ctx, gwSub.LatestInvoiceID)
	if err != nil {
		return nil, common.UpstreamError(err, "failed to retrieve invoice %s", gwSub.LatestInvoiceID)
	}

	txn, err := e.payInvoice(ctx, inv, pm, gwSub.ID)
	if err != nil {
		return nil, err
	}
	tenantID := in.TenantID
	txn.TenantID = &tenantID
	if err := e.store.CreateTransaction(ctx, txn); err != nil {
		e.logger.Error("Failed to record delegated payment transaction", "error", err,
			"payment_intent_id", txn.StripePaymentIntentID)
	}

	refreshed, err := e.gateway.GetSubscription(ctx, gwSub.ID)
	if err != nil {
		return nil, common.UpstreamError(err, "failed to refresh gateway subscription %s", gwSub.ID)
	}
	return refreshed, nil
}

// verifyDelegatorPaymentMethod checks the payment method belongs to the
// delegator's gateway customer profile.
func (e *Engine) verifyDelegatorPaymentMethod(ctx context.Context, delegatorEmail, paymentMethodID string) (*services.GatewayPaymentMethod, error) {
	delegator, err := e.gateway.FindCustomerByEmail(ctx, delegatorEmail)
	if err != nil {
		return nil, common.UpstreamError(err, "failed to look up delegator customer")
	}
	if delegator == nil {
		return nil, common.ForbiddenError("delegator has no gateway customer profile")
	}

	pm, err := e.gateway.GetPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return nil, common.UpstreamError(err, "failed to retrieve payment method")
	}
	if pm.CustomerID == "" || pm.CustomerID != delegator.ID {
		return nil, common.ForbiddenError("payment method does not belong to the delegator")
	}
	return pm, nil
}

// payInvoice creates and confirms a payment intent for the invoice's amount
// due, then marks the invoice paid out-of-band. It returns the succeeded
// transaction record; gateway state is untouched on decline.
func (e *Engine) payInvoice(ctx context.Context, inv *services.GatewayInvoice, pm *services.GatewayPaymentMethod, subscriptionID string) (*models.StripeTransaction, error) {
	pi, err := e.gateway.CreatePaymentIntent(ctx, services.CreatePaymentIntentParams{
		Amount:          inv.AmountDue,
		Currency:        inv.Currency,
		CustomerID:      pm.CustomerID,
		PaymentMethodID: pm.ID,
		Confirm:         true,
		Description:     fmt.Sprintf("Delegated payment for invoice %s", inv.ID),
		Metadata:        map[string]string{"invoice_id": inv.ID, "subscription_id": subscriptionID},
	})
	if err != nil {
		return nil, common.PaymentFailedError("gateway declined the payment: %v", err)
	}
	if pi.Status != "succeeded" {
		msg := pi.FailureMessage
		if msg == "" {
			msg = fmt.Sprintf("payment intent ended in status %q", pi.Status)
		}
		return nil, common.PaymentFailedError("%s", msg)
	}

	if _, err := e.gateway.PayInvoiceOutOfBand(ctx, inv.ID); err != nil {
		return nil, common.UpstreamError(err, "payment succeeded but invoice %s could not be settled", inv.ID)
	}

	now := time.Now()
	piID := pi.ID
	return &models.StripeTransaction{
		StripePaymentIntentID: &piID,
		StripeInvoiceID:       inv.ID,
		StripeSubscriptionID:  subscriptionID,
		StripeCustomerID:      inv.CustomerID,
		Amount:                pi.Amount,
		Currency:              pi.Currency,
		Status:                "succeeded",
		Type:                  models.TransactionTypeSubscription,
		CardBrand:             pm.Brand,
		CardLast4:             pm.Last4,
		PaidAt:                &now,
	}, nil
}

// buildLocalRecord maps the gateway subscription onto a local record,
// snapshotting the plan's price and currency.
func (e *Engine) buildLocalRecord(gwSub *services.GatewaySubscription, plan *models.SubscriptionPlan, tenantID uint) *models.TenantSubscription {
	status := SubscriptionStatus(gwSub.Status)
	if !status.Valid() {
		e.logger.Warn("Gateway reported unrecognized subscription status",
			"subscription_id", gwSub.ID, "status", gwSub.Status)
	}

	return &models.TenantSubscription{
		TenantID:             tenantID,
		PlanID:               plan.ID,
		StripeSubscriptionID: gwSub.ID,
		StripeCustomerID:     gwSub.CustomerID,
		Status:               gwSub.Status,
		CurrentPeriodStart:   gwSub.CurrentPeriodStart,
		CurrentPeriodEnd:     gwSub.CurrentPeriodEnd,
		TrialStart:           gwSub.TrialStart,
		TrialEnd:             gwSub.TrialEnd,
		CancelAtPeriodEnd:    gwSub.CancelAtPeriodEnd,
		CanceledAt:           gwSub.CanceledAt,
		EndedAt:              gwSub.EndedAt,
		Price:                plan.Price,
		Currency:             plan.Currency,
	}
}

// PayOnBehalfInput identifies an existing local subscription and the
// delegator's payment instrument.
type PayOnBehalfInput struct {
	SubscriptionID  uint
	DelegatorEmail  string
	PaymentMethodID string
}

// PayOnBehalf settles the latest open invoice of an existing subscription
// with the delegator's payment method and flips the local record to active.
func (e *Engine) PayOnBehalf(ctx context.Context, in PayOnBehalfInput) (*models.TenantSubscription, error) {
	sub, err := e.store.GetSubscription(ctx, in.SubscriptionID)
	if err != nil {
		return nil, err
	}

	gwSub, err := e.gateway.GetSubscription(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return nil, common.UpstreamError(err, "failed to retrieve gateway subscription")
	}
	if gwSub.Status == string(StatusActive) {
		return nil, common.ConflictError("subscription is already active")
	}
	if gwSub.LatestInvoiceID == "" {
		return nil, common.ConflictError("subscription has no invoice to pay")
	}

	inv, err := e.gateway.GetInvoice(ctx, gwSub.LatestInvoiceID)
	if err != nil {
		return nil, common.UpstreamError(err, "failed to retrieve invoice %s", gwSub.LatestInvoiceID)
	}
	if inv.Paid {
		return nil, common.ConflictError("latest invoice is already paid, nothing due")
	}

	pm, err := e.verifyDelegatorPaymentMethod(ctx, in.DelegatorEmail, in.PaymentMethodID)
	if err != nil {
		return nil, err
	}

	txn, err := e.payInvoice(ctx, inv, pm, sub.StripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	txn.TenantID = &sub.TenantID
	if err := e.store.CreateTransaction(ctx, txn); err != nil {
		e.logger.Error("Failed to record pay-on-behalf transaction", "error", err,
			"payment_intent_id", txn.StripePaymentIntentID)
	}

	from := SubscriptionStatus(sub.Status)
	if !CanTransition(from, StatusActive) {
		e.logger.Warn("Unexpected status transition after delegated payment",
			"subscription_id", sub.StripeSubscriptionID, "from", sub.Status, "to", StatusActive)
	}
	if _, err := e.store.UpdateSubscriptionByGatewayID(ctx, sub.StripeSubscriptionID, map[string]interface{}{
		"status": string(StatusActive),
	}); err != nil {
		return nil, err
	}
	sub.Status = string(StatusActive)

	e.logger.Info("Subscription paid on behalf", "subscription_id", sub.StripeSubscriptionID,
		"tenant_id", sub.TenantID)
	return sub, nil
}

// CancelSubscription cancels an existing subscription, immediately or at
// period end, and mirrors the gateway-reported state locally.
func (e *Engine) CancelSubscription(ctx context.Context, id uint, cancelAtPeriodEnd bool) (*models.TenantSubscription, error) {
	sub, err := e.store.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	gwSub, err := e.gateway.CancelSubscription(ctx, sub.StripeSubscriptionID, cancelAtPeriodEnd)
	if err != nil {
		return nil, common.UpstreamError(err, "failed to cancel gateway subscription")
	}

	updates := map[string]interface{}{
		"status":               gwSub.Status,
		"cancel_at_period_end": gwSub.CancelAtPeriodEnd,
	}
	if gwSub.CanceledAt != nil {
		updates["canceled_at"] = gwSub.CanceledAt
	}
	if gwSub.EndedAt != nil {
		updates["ended_at"] = gwSub.EndedAt
	}
	if _, err := e.store.UpdateSubscriptionByGatewayID(ctx, sub.StripeSubscriptionID, updates); err != nil {
		return nil, err
	}

	return e.store.GetSubscription(ctx, id)
}
