package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/models"
	"github.com/MohamedNourTN/clinicback/services"
)

// WebhookProcessor applies gateway event deliveries to local records.
// Redelivered events are skipped wholesale via the webhook_events dedup
// table; per-event handler failures are logged and swallowed so the
// gateway does not keep retrying events we cannot use.
type WebhookProcessor struct {
	logger  *slog.Logger
	store   *Store
	gateway services.PaymentGateway
}

func NewWebhookProcessor(store *Store, gateway services.PaymentGateway) *WebhookProcessor {
	return &WebhookProcessor{
		logger:  slog.With("service", "WebhookProcessor"),
		store:   store,
		gateway: gateway,
	}
}

// Process verifies the delivery signature and dispatches the event. It
// returns an error only when the signature is invalid; everything after
// verification is acknowledged so the gateway stops redelivering.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) error {
	event, err := p.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		return common.InvalidSignatureError("webhook signature verification failed: %v", err)
	}

	rec := &models.WebhookEvent{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
	}
	created, err := p.store.RecordWebhookEvent(ctx, rec)
	if err != nil {
		p.logger.Error("Failed to record webhook event", "event_id", event.ID, "error", err)
		return nil
	}
	if !created {
		p.logger.Info("Skipping redelivered webhook event", "event_id", event.ID, "type", event.Type)
		return nil
	}

	handlerErr := p.dispatch(ctx, &event)
	if handlerErr != nil {
		p.logger.Error("Webhook handler failed", "event_id", event.ID,
			"type", event.Type, "error", handlerErr)
	}

	if err := p.store.MarkWebhookEventProcessed(ctx, rec.ID, handlerErr); err != nil {
		p.logger.Error("Failed to mark webhook event processed", "event_id", event.ID, "error", err)
	}
	return nil
}

func (p *WebhookProcessor) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "customer.subscription.updated", "customer.subscription.deleted":
		return p.handleSubscriptionChange(ctx, event)
	case "invoice.payment_succeeded":
		return p.handleInvoicePayment(ctx, event, "succeeded")
	case "invoice.payment_failed":
		return p.handleInvoicePayment(ctx, event, "failed")
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		return p.handlePaymentIntent(ctx, event)
	default:
		p.logger.Debug("Ignoring webhook event type", "type", event.Type)
		return nil
	}
}

// handleSubscriptionChange mirrors gateway subscription state onto the
// local record. Unknown subscriptions are ignored; a status value the
// state machine rejects is skipped while period and cancellation fields
// still apply.
func (p *WebhookProcessor) handleSubscriptionChange(ctx context.Context, event *stripe.Event) error {
	var raw stripe.Subscription
	if err := services.ParseWebhookData(event.Data, &raw); err != nil {
		return fmt.Errorf("failed to parse subscription payload: %w", err)
	}
	gwSub := services.MapSubscription(&raw)

	local, err := p.store.GetSubscriptionByGatewayID(ctx, gwSub.ID)
	if err != nil {
		return err
	}
	if local == nil {
		p.logger.Info("Ignoring event for unknown subscription", "subscription_id", gwSub.ID)
		return nil
	}

	updates := map[string]interface{}{
		"current_period_start": gwSub.CurrentPeriodStart,
		"current_period_end":   gwSub.CurrentPeriodEnd,
		"cancel_at_period_end": gwSub.CancelAtPeriodEnd,
	}
	if gwSub.CanceledAt != nil {
		updates["canceled_at"] = gwSub.CanceledAt
	}
	if gwSub.EndedAt != nil {
		updates["ended_at"] = gwSub.EndedAt
	}
	if gwSub.TrialStart != nil {
		updates["trial_start"] = gwSub.TrialStart
	}
	if gwSub.TrialEnd != nil {
		updates["trial_end"] = gwSub.TrialEnd
	}

	from, to := SubscriptionStatus(local.Status), SubscriptionStatus(gwSub.Status)
	if !to.Valid() {
		p.logger.Warn("Gateway reported unrecognized subscription status",
			"subscription_id", gwSub.ID, "status", gwSub.Status)
	} else if !CanTransition(from, to) {
		p.logger.Warn("Rejecting invalid subscription status transition",
			"subscription_id", gwSub.ID, "from", from, "to", to)
	} else {
		updates["status"] = gwSub.Status
	}

	if _, err := p.store.UpdateSubscriptionByGatewayID(ctx, gwSub.ID, updates); err != nil {
		return err
	}
	p.logger.Info("Subscription synchronized from webhook",
		"subscription_id", gwSub.ID, "status", gwSub.Status)
	return nil
}

// handleInvoicePayment appends an invoice transaction attributed to the
// tenant owning the invoiced subscription.
func (p *WebhookProcessor) handleInvoicePayment(ctx context.Context, event *stripe.Event, status string) error {
	var raw stripe.Invoice
	if err := services.ParseWebhookData(event.Data, &raw); err != nil {
		return fmt.Errorf("failed to parse invoice payload: %w", err)
	}
	inv := services.MapInvoice(&raw)

	var tenantID *uint
	if inv.SubscriptionID != "" {
		local, err := p.store.GetSubscriptionByGatewayID(ctx, inv.SubscriptionID)
		if err != nil {
			return err
		}
		if local != nil {
			tenantID = &local.TenantID
		}
	}

	amount := inv.AmountPaid
	var paidAt *time.Time
	if status == "succeeded" {
		now := event.Created
		if now > 0 {
			t := time.Unix(now, 0).UTC()
			paidAt = &t
		}
	} else {
		amount = inv.AmountDue
	}

	txn := &models.StripeTransaction{
		TenantID:             tenantID,
		StripeInvoiceID:      inv.ID,
		StripeSubscriptionID: inv.SubscriptionID,
		StripeCustomerID:     inv.CustomerID,
		Amount:               amount,
		Currency:             inv.Currency,
		Status:               status,
		Type:                 models.TransactionTypeInvoice,
		PaidAt:               paidAt,
	}
	if err := p.store.CreateTransaction(ctx, txn); err != nil {
		return err
	}
	p.logger.Info("Invoice transaction recorded", "invoice_id", inv.ID, "status", status)
	return nil
}

// handlePaymentIntent upserts a one-time transaction keyed on the payment
// intent id, so out-of-order or repeated deliveries converge on the final
// state instead of stacking rows.
func (p *WebhookProcessor) handlePaymentIntent(ctx context.Context, event *stripe.Event) error {
	var raw stripe.PaymentIntent
	if err := services.ParseWebhookData(event.Data, &raw); err != nil {
		return fmt.Errorf("failed to parse payment intent payload: %w", err)
	}
	pi := services.MapPaymentIntent(&raw)

	existing, err := p.store.GetTransactionByPaymentIntentID(ctx, pi.ID)
	if err != nil {
		return err
	}

	var paidAt *time.Time
	if pi.Status == "succeeded" {
		t := time.Unix(event.Created, 0).UTC()
		paidAt = &t
	}

	if existing != nil {
		existing.Status = pi.Status
		existing.Amount = pi.Amount
		existing.FailureCode = pi.FailureCode
		existing.FailureMessage = pi.FailureMessage
		if pi.CardBrand != "" {
			existing.CardBrand = pi.CardBrand
			existing.CardLast4 = pi.CardLast4
		}
		if paidAt != nil {
			existing.PaidAt = paidAt
		}
		if err := p.store.SaveTransaction(ctx, existing); err != nil {
			return err
		}
		p.logger.Info("Payment intent transaction updated", "payment_intent_id", pi.ID, "status", pi.Status)
		return nil
	}

	piID := pi.ID
	txn := &models.StripeTransaction{
		StripePaymentIntentID: &piID,
		StripeCustomerID:      pi.CustomerID,
		Amount:                pi.Amount,
		Currency:              pi.Currency,
		Status:                pi.Status,
		Type:                  models.TransactionTypeOneTime,
		FailureCode:           pi.FailureCode,
		FailureMessage:        pi.FailureMessage,
		CardBrand:             pi.CardBrand,
		CardLast4:             pi.CardLast4,
		PaidAt:                paidAt,
	}
	if err := p.store.CreateTransaction(ctx, txn); err != nil {
		return err
	}
	p.logger.Info("Payment intent transaction recorded", "payment_intent_id", pi.ID, "status", pi.Status)
	return nil
}
