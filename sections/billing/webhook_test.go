package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/models"
	"github.com/MohamedNourTN/clinicback/services"
	"github.com/MohamedNourTN/clinicback/testutil"
)

func newTestProcessor(t *testing.T) (*WebhookProcessor, *Store, *services.MockGateway, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	gateway := services.NewMockGateway()
	return NewWebhookProcessor(store, gateway), store, gateway, db
}

// makeEvent builds a gateway event payload the mock's VerifyWebhook decodes.
func makeEvent(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      id,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]any{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func TestProcessRejectsBadSignature(t *testing.T) {
	processor, store, gateway, _ := newTestProcessor(t)
	gateway.VerifyWebhookErr = errors.New("signature mismatch")

	err := processor.Process(context.Background(), []byte("{}"), "t=1,v1=bad")
	require.Error(t, err)
	assert.Equal(t, common.CodeInvalidSignature, common.CodeOf(err))

	var count int64
	require.NoError(t, store.db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestProcessSkipsRedeliveredEvent(t *testing.T) {
	processor, store, _, _ := newTestProcessor(t)
	ctx := context.Background()

	payload := makeEvent(t, "evt_dup", "payment_intent.succeeded", map[string]any{
		"id":       "pi_dup",
		"amount":   500,
		"currency": "usd",
		"status":   "succeeded",
		"customer": "cus_1",
	})

	require.NoError(t, processor.Process(ctx, payload, "sig"))
	require.NoError(t, processor.Process(ctx, payload, "sig"))

	_, total, err := store.ListTransactions(ctx, TransactionFilter{}, common.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestPaymentIntentUpsertIdempotent(t *testing.T) {
	processor, store, _, _ := newTestProcessor(t)
	ctx := context.Background()

	failed := makeEvent(t, "evt_pi_1", "payment_intent.payment_failed", map[string]any{
		"id":       "pi_1",
		"amount":   500,
		"currency": "usd",
		"status":   "requires_payment_method",
		"customer": "cus_1",
		"last_payment_error": map[string]any{
			"code":    "card_declined",
			"message": "Your card was declined.",
		},
	})
	require.NoError(t, processor.Process(ctx, failed, "sig"))

	succeeded := makeEvent(t, "evt_pi_2", "payment_intent.succeeded", map[string]any{
		"id":       "pi_1",
		"amount":   500,
		"currency": "usd",
		"status":   "succeeded",
		"customer": "cus_1",
	})
	require.NoError(t, processor.Process(ctx, succeeded, "sig"))

	// Two events, one payment intent, exactly one converged record.
	txn, err := store.GetTransactionByPaymentIntentID(ctx, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, "succeeded", txn.Status)
	require.NotNil(t, txn.PaidAt)

	_, total, err := store.ListTransactions(ctx, TransactionFilter{}, common.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestPaymentIntentWebhookCapturesCardDetails(t *testing.T) {
	processor, store, _, _ := newTestProcessor(t)
	ctx := context.Background()

	payload := makeEvent(t, "evt_pi_card", "payment_intent.succeeded", map[string]any{
		"id":       "pi_card",
		"amount":   500,
		"currency": "usd",
		"status":   "succeeded",
		"customer": "cus_1",
		"latest_charge": map[string]any{
			"id": "ch_1",
			"payment_method_details": map[string]any{
				"card": map[string]any{
					"brand": "visa",
					"last4": "4242",
				},
			},
		},
	})
	require.NoError(t, processor.Process(ctx, payload, "sig"))

	txn, err := store.GetTransactionByPaymentIntentID(ctx, "pi_card")
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, "visa", txn.CardBrand)
	assert.Equal(t, "4242", txn.CardLast4)
}

func TestSubscriptionUpdatedWebhook(t *testing.T) {
	processor, store, _, db := newTestProcessor(t)
	ctx := context.Background()

	tenant := testutil.TestTenant(t, db)
	plan := testutil.TestPlan(t, db)
	testutil.TestSubscription(t, db, tenant.ID, plan.ID,
		testutil.WithStatus("incomplete"), testutil.WithGatewaySubID("sub_1"))

	start := time.Now().Unix()
	end := time.Now().AddDate(0, 1, 0).Unix()
	payload := makeEvent(t, "evt_sub_1", "customer.subscription.updated", map[string]any{
		"id":       "sub_1",
		"status":   "active",
		"customer": "cus_1",
		"items": map[string]any{
			"data": []map[string]any{{
				"current_period_start": start,
				"current_period_end":   end,
			}},
		},
	})
	require.NoError(t, processor.Process(ctx, payload, "sig"))

	sub, err := store.GetSubscriptionByGatewayID(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, end, sub.CurrentPeriodEnd.Unix())
}

func TestSubscriptionUpdatedInvalidTransitionKeepsStatus(t *testing.T) {
	processor, store, _, db := newTestProcessor(t)
	ctx := context.Background()

	tenant := testutil.TestTenant(t, db)
	plan := testutil.TestPlan(t, db)
	testutil.TestSubscription(t, db, tenant.ID, plan.ID,
		testutil.WithStatus("canceled"), testutil.WithGatewaySubID("sub_dead"))

	end := time.Now().AddDate(0, 1, 0).Unix()
	payload := makeEvent(t, "evt_sub_2", "customer.subscription.updated", map[string]any{
		"id":       "sub_dead",
		"status":   "active",
		"customer": "cus_1",
		"items": map[string]any{
			"data": []map[string]any{{
				"current_period_start": time.Now().Unix(),
				"current_period_end":   end,
			}},
		},
	})
	require.NoError(t, processor.Process(ctx, payload, "sig"))

	// Status change rejected; period fields still applied.
	sub, err := store.GetSubscriptionByGatewayID(ctx, "sub_dead")
	require.NoError(t, err)
	assert.Equal(t, "canceled", sub.Status)
	assert.Equal(t, end, sub.CurrentPeriodEnd.Unix())
}

func TestSubscriptionUpdatedUnknownSubscriptionIgnored(t *testing.T) {
	processor, store, _, _ := newTestProcessor(t)
	ctx := context.Background()

	payload := makeEvent(t, "evt_sub_3", "customer.subscription.updated", map[string]any{
		"id":       "sub_stranger",
		"status":   "active",
		"customer": "cus_1",
	})
	require.NoError(t, processor.Process(ctx, payload, "sig"))

	var event models.WebhookEvent
	require.NoError(t, store.db.Where("provider_event_id = ?", "evt_sub_3").First(&event).Error)
	require.NotNil(t, event.ProcessedAt)
	assert.Empty(t, event.ProcessingError)
}

func TestInvoicePaymentUnknownSubscriptionStillRecorded(t *testing.T) {
	processor, store, _, _ := newTestProcessor(t)
	ctx := context.Background()

	// The invoice references a subscription this system did not originate;
	// the ledger row is kept but no tenant is attributed.
	payload := makeEvent(t, "evt_inv_3", "invoice.payment_succeeded", map[string]any{
		"id":          "in_3",
		"amount_due":  4900,
		"amount_paid": 4900,
		"currency":    "usd",
		"status":      "paid",
		"customer":    "cus_1",
		"parent": map[string]any{
			"subscription_details": map[string]any{
				"subscription": "sub_nobody",
			},
		},
	})
	require.NoError(t, processor.Process(ctx, payload, "sig"))

	var event models.WebhookEvent
	require.NoError(t, store.db.Where("provider_event_id = ?", "evt_inv_3").First(&event).Error)
	require.NotNil(t, event.ProcessedAt)
	assert.Empty(t, event.ProcessingError)

	txns, total, err := store.ListTransactions(ctx, TransactionFilter{}, common.PageRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Nil(t, txns[0].TenantID)
	assert.Equal(t, "sub_nobody", txns[0].StripeSubscriptionID)
}

func TestInvoicePaymentSucceededRecordsTransaction(t *testing.T) {
	processor, store, _, db := newTestProcessor(t)
	ctx := context.Background()

	tenant := testutil.TestTenant(t, db)
	plan := testutil.TestPlan(t, db)
	testutil.TestSubscription(t, db, tenant.ID, plan.ID,
		testutil.WithStatus("active"), testutil.WithGatewaySubID("sub_1"))

	payload := makeEvent(t, "evt_inv_1", "invoice.payment_succeeded", map[string]any{
		"id":          "in_1",
		"amount_due":  4900,
		"amount_paid": 4900,
		"currency":    "usd",
		"status":      "paid",
		"customer":    "cus_1",
		"parent": map[string]any{
			"subscription_details": map[string]any{
				"subscription": "sub_1",
			},
		},
	})
	require.NoError(t, processor.Process(ctx, payload, "sig"))

	txns, total, err := store.ListTransactions(ctx, TransactionFilter{TenantID: tenant.ID}, common.PageRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, models.TransactionTypeInvoice, txns[0].Type)
	assert.Equal(t, "succeeded", txns[0].Status)
	assert.EqualValues(t, 4900, txns[0].Amount)
	assert.Equal(t, "sub_1", txns[0].StripeSubscriptionID)
}

func TestInvoicePaymentFailedRecordsTransaction(t *testing.T) {
	processor, store, _, _ := newTestProcessor(t)
	ctx := context.Background()

	payload := makeEvent(t, "evt_inv_2", "invoice.payment_failed", map[string]any{
		"id":          "in_2",
		"amount_due":  4900,
		"amount_paid": 0,
		"currency":    "usd",
		"status":      "open",
		"customer":    "cus_1",
	})
	require.NoError(t, processor.Process(ctx, payload, "sig"))

	txns, total, err := store.ListTransactions(ctx, TransactionFilter{Status: "failed"}, common.PageRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.EqualValues(t, 4900, txns[0].Amount)
	assert.Nil(t, txns[0].PaidAt)
	assert.Nil(t, txns[0].TenantID)
}

func TestHandlerFailureStillAcknowledged(t *testing.T) {
	processor, store, _, _ := newTestProcessor(t)
	ctx := context.Background()

	// Missing customer id fails transaction validation inside the handler.
	payload := makeEvent(t, "evt_bad", "payment_intent.succeeded", map[string]any{
		"id":       "pi_bad",
		"amount":   500,
		"currency": "usd",
		"status":   "succeeded",
	})
	require.NoError(t, processor.Process(ctx, payload, "sig"))

	var event models.WebhookEvent
	require.NoError(t, store.db.Where("provider_event_id = ?", "evt_bad").First(&event).Error)
	assert.NotEmpty(t, event.ProcessingError)
}

func TestIgnoredEventTypeAcknowledged(t *testing.T) {
	processor, _, _, _ := newTestProcessor(t)

	payload := makeEvent(t, "evt_other", "charge.refunded", map[string]any{"id": "ch_1"})
	require.NoError(t, processor.Process(context.Background(), payload, "sig"))
}
