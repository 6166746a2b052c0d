package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/services"
)

func TestSyncPlansSkipsExisting(t *testing.T) {
	engine, store, gateway, _ := newTestEngine(t)
	ctx := context.Background()

	gateway.Prices = []*services.GatewayPrice{
		{ID: "price_a", ProductID: "prod_a", ProductName: "Starter", UnitAmount: 2900, Currency: "usd", Interval: "month", IntervalCount: 1, Active: true},
		{ID: "price_b", ProductID: "prod_b", ProductName: "Growth", UnitAmount: 7900, Currency: "usd", Interval: "month", IntervalCount: 1, Active: true},
		{ID: "price_c", ProductID: "prod_c", Nickname: "legacy-annual", UnitAmount: 49900, Currency: "usd", Interval: "year", IntervalCount: 1, Active: true},
	}

	existing, err := store.GetPlanByPriceID(ctx, "price_a")
	require.NoError(t, err)
	require.Nil(t, existing)

	report, err := engine.SyncPlans(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 0, report.Skipped)

	// Imported plans are inactive and never default.
	plan, err := store.GetPlanByPriceID(ctx, "price_a")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.False(t, plan.IsActive)
	assert.False(t, plan.IsDefault)
	assert.Equal(t, "Starter", plan.Name)

	// Nickname fallback when the product name is absent.
	plan, err = store.GetPlanByPriceID(ctx, "price_c")
	require.NoError(t, err)
	assert.Equal(t, "legacy-annual", plan.Name)

	// Re-running creates nothing new.
	report, err = engine.SyncPlans(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 3, report.Skipped)
}

func TestSyncTransactionsCreatesOnlyMissing(t *testing.T) {
	engine, store, gateway, _ := newTestEngine(t)
	ctx := context.Background()

	for _, id := range []string{"pi_1", "pi_2", "pi_3", "pi_4"} {
		gateway.PaymentIntents[id] = &services.GatewayPaymentIntent{
			ID:         id,
			CustomerID: "cus_1",
			Amount:     500,
			Currency:   "usd",
			Status:     "succeeded",
		}
	}

	// Two of the four already exist locally.
	first, err := engine.SyncTransactions(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 4, first.Created)

	gateway.PaymentIntents["pi_5"] = &services.GatewayPaymentIntent{
		ID: "pi_5", CustomerID: "cus_1", Amount: 700, Currency: "usd", Status: "succeeded",
	}
	gateway.PaymentIntents["pi_6"] = &services.GatewayPaymentIntent{
		ID: "pi_6", CustomerID: "cus_1", Amount: 900, Currency: "usd", Status: "succeeded",
	}

	report, err := engine.SyncTransactions(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 4, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	_, total, err := store.ListTransactions(ctx, TransactionFilter{}, common.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
}

func TestSyncTransactionsRecordsPerItemFailures(t *testing.T) {
	engine, _, gateway, _ := newTestEngine(t)
	ctx := context.Background()

	gateway.PaymentIntents["pi_ok"] = &services.GatewayPaymentIntent{
		ID: "pi_ok", CustomerID: "cus_1", Amount: 500, Currency: "usd", Status: "succeeded",
	}
	// Missing customer id fails validation but must not abort the batch.
	gateway.PaymentIntents["pi_bad"] = &services.GatewayPaymentIntent{
		ID: "pi_bad", Amount: 500, Currency: "usd", Status: "succeeded",
	}

	report, err := engine.SyncTransactions(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, report.Errors, 1)
}
