package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/models"
	"github.com/MohamedNourTN/clinicback/testutil"
)

func TestCreatePlanClearsOtherDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	first := testutil.TestPlan(t, db, testutil.WithPlanDefault())

	second := &models.SubscriptionPlan{
		Name:          "premium",
		StripePriceID: "price_premium",
		Price:         9900,
		Currency:      "usd",
		Interval:      "month",
		IntervalCount: 1,
		IsActive:      true,
		IsDefault:     true,
	}
	require.NoError(t, store.CreatePlan(ctx, second))

	var defaults int64
	require.NoError(t, db.Model(&models.SubscriptionPlan{}).Where("is_default = ?", true).Count(&defaults).Error)
	assert.EqualValues(t, 1, defaults)

	reloaded, err := store.GetPlan(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)
}

func TestInactiveFlagsPersistOnCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	plan := testutil.TestPlan(t, db, testutil.WithPlanInactive())
	reloaded, err := store.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)

	tenant := testutil.TestTenant(t, db, func(tn *models.Tenant) { tn.Active = false })
	var fetched models.Tenant
	require.NoError(t, db.First(&fetched, tenant.ID).Error)
	assert.False(t, fetched.Active)
}

func TestCreatePlanDuplicatePriceConflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	existing := testutil.TestPlan(t, db)

	dup := &models.SubscriptionPlan{
		Name:          "copy",
		StripePriceID: existing.StripePriceID,
		Price:         100,
		Currency:      "usd",
		Interval:      "month",
		IntervalCount: 1,
	}
	err := store.CreatePlan(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, common.CodeConflict, common.CodeOf(err))
}

func TestSetDefaultPlan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	a := testutil.TestPlan(t, db, testutil.WithPlanDefault())
	b := testutil.TestPlan(t, db)

	require.NoError(t, store.SetDefaultPlan(ctx, b.ID))

	reloadedA, err := store.GetPlan(ctx, a.ID)
	require.NoError(t, err)
	reloadedB, err := store.GetPlan(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, reloadedA.IsDefault)
	assert.True(t, reloadedB.IsDefault)

	err = store.SetDefaultPlan(ctx, 9999)
	require.Error(t, err)
	assert.Equal(t, common.CodeNotFound, common.CodeOf(err))
}

func TestActiveSubscriptionUniquePerTenant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	tenant := testutil.TestTenant(t, db)
	plan := testutil.TestPlan(t, db)
	testutil.TestSubscription(t, db, tenant.ID, plan.ID, testutil.WithStatus("active"))

	second := &models.TenantSubscription{
		TenantID:             tenant.ID,
		PlanID:               plan.ID,
		StripeSubscriptionID: "sub_second",
		StripeCustomerID:     "cus_second",
		Status:               "trialing",
		CurrentPeriodStart:   time.Now(),
		CurrentPeriodEnd:     time.Now().AddDate(0, 1, 0),
		Price:                4900,
		Currency:             "usd",
	}
	err := store.CreateSubscription(ctx, second)
	require.Error(t, err)
	assert.Equal(t, common.CodeConflict, common.CodeOf(err))

	// A terminal record coexists with a live one.
	terminal := &models.TenantSubscription{
		TenantID:             tenant.ID,
		PlanID:               plan.ID,
		StripeSubscriptionID: "sub_terminal",
		StripeCustomerID:     "cus_terminal",
		Status:               "canceled",
		CurrentPeriodStart:   time.Now(),
		CurrentPeriodEnd:     time.Now().AddDate(0, 1, 0),
		Price:                4900,
		Currency:             "usd",
	}
	require.NoError(t, store.CreateSubscription(ctx, terminal))
}

func TestLatestSubscriptionForTenant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	tenant := testutil.TestTenant(t, db)
	plan := testutil.TestPlan(t, db)

	got, err := store.LatestSubscriptionForTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	testutil.TestSubscription(t, db, tenant.ID, plan.ID, testutil.WithStatus("canceled"))
	latest := testutil.TestSubscription(t, db, tenant.ID, plan.ID, testutil.WithStatus("active"))

	got, err = store.LatestSubscriptionForTenant(ctx, tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, latest.StripeSubscriptionID, got.StripeSubscriptionID)
}

func TestTransactionValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	err := store.CreateTransaction(ctx, &models.StripeTransaction{
		StripeCustomerID: "cus_1",
		Amount:           -5,
		Currency:         "usd",
		Status:           "succeeded",
		Type:             models.TransactionTypeOneTime,
	})
	require.Error(t, err)
	assert.Equal(t, common.CodeValidation, common.CodeOf(err))

	err = store.CreateTransaction(ctx, &models.StripeTransaction{
		Amount:   100,
		Currency: "usd",
		Status:   "succeeded",
		Type:     models.TransactionTypeOneTime,
	})
	require.Error(t, err)
	assert.Equal(t, common.CodeValidation, common.CodeOf(err))
}

func TestListTransactionsFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	tenant := testutil.TestTenant(t, db)
	testutil.TestTransaction(t, db, testutil.WithTransactionTenant(tenant.ID))
	testutil.TestTransaction(t, db, func(txn *models.StripeTransaction) {
		txn.Status = "failed"
		txn.Type = models.TransactionTypeInvoice
	})
	testutil.TestTransaction(t, db)

	txns, total, err := store.ListTransactions(ctx, TransactionFilter{TenantID: tenant.ID}, common.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, txns, 1)

	txns, total, err = store.ListTransactions(ctx, TransactionFilter{Status: "failed"}, common.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.TransactionTypeInvoice, txns[0].Type)

	_, total, err = store.ListTransactions(ctx, TransactionFilter{}, common.PageRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestRecordWebhookEventDedup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	created, err := store.RecordWebhookEvent(ctx, &models.WebhookEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		EventType:       "payment_intent.succeeded",
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.RecordWebhookEvent(ctx, &models.WebhookEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		EventType:       "payment_intent.succeeded",
	})
	require.NoError(t, err)
	assert.False(t, created)

	// Different provider, same id: not a duplicate.
	created, err = store.RecordWebhookEvent(ctx, &models.WebhookEvent{
		Provider:        "paypal",
		ProviderEventID: "evt_1",
		EventType:       "other",
	})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestAnalytics(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	planA := testutil.TestPlan(t, db)
	planB := testutil.TestPlan(t, db)
	t1 := testutil.TestTenant(t, db)
	t2 := testutil.TestTenant(t, db)
	t3 := testutil.TestTenant(t, db)
	testutil.TestSubscription(t, db, t1.ID, planA.ID, testutil.WithStatus("active"))
	testutil.TestSubscription(t, db, t2.ID, planA.ID, testutil.WithStatus("canceled"))
	testutil.TestSubscription(t, db, t3.ID, planB.ID, testutil.WithStatus("active"))

	testutil.TestTransaction(t, db)
	testutil.TestTransaction(t, db, func(txn *models.StripeTransaction) {
		txn.Type = models.TransactionTypeInvoice
		txn.Amount = 100
	})

	report, err := store.Analytics(ctx, nil, nil)
	require.NoError(t, err)

	statusCounts := map[string]int64{}
	for _, row := range report.SubscriptionsByStatus {
		statusCounts[row.Status] = row.Count
	}
	assert.EqualValues(t, 2, statusCounts["active"])
	assert.EqualValues(t, 1, statusCounts["canceled"])

	planCounts := map[uint]int64{}
	for _, row := range report.SubscriptionsByPlan {
		planCounts[row.PlanID] = row.Count
	}
	assert.EqualValues(t, 2, planCounts[planA.ID])
	assert.EqualValues(t, 1, planCounts[planB.ID])

	typeTotals := map[string]TypeTotal{}
	for _, row := range report.TransactionsByType {
		typeTotals[row.Type] = row
	}
	assert.EqualValues(t, 1, typeTotals[models.TransactionTypeInvoice].Count)
	assert.EqualValues(t, 100, typeTotals[models.TransactionTypeInvoice].AmountTotal)

	// A window in the future sees nothing.
	future := time.Now().Add(time.Hour)
	report, err = store.Analytics(ctx, &future, nil)
	require.NoError(t, err)
	assert.Empty(t, report.SubscriptionsByStatus)
}
