package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/MohamedNourTN/clinicback/sections/models"
)

var seq atomic.Uint64

func next() uint64 {
	return seq.Add(1)
}

// TestTenant creates a tenant fixture.
func TestTenant(t *testing.T, db *gorm.DB, opts ...func(*models.Tenant)) *models.Tenant {
	t.Helper()

	n := next()
	tenant := &models.Tenant{
		Name:         fmt.Sprintf("clinic-%d", n),
		DisplayName:  fmt.Sprintf("Clinic %d", n),
		ContactEmail: fmt.Sprintf("owner_%d@example.com", n),
		Active:       true,
	}
	for _, opt := range opts {
		opt(tenant)
	}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("Failed to create test tenant: %v", err)
	}
	return tenant
}

// TestClinic creates a clinic fixture under the given tenant.
func TestClinic(t *testing.T, db *gorm.DB, tenantID uint, opts ...func(*models.Clinic)) *models.Clinic {
	t.Helper()

	clinic := &models.Clinic{
		TenantID: tenantID,
		Name:     fmt.Sprintf("Location %d", next()),
		Active:   true,
	}
	for _, opt := range opts {
		opt(clinic)
	}
	if err := db.Create(clinic).Error; err != nil {
		t.Fatalf("Failed to create test clinic: %v", err)
	}
	return clinic
}

// TestUser creates a user fixture.
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*models.User)) *models.User {
	t.Helper()

	user := &models.User{
		Email:     fmt.Sprintf("user_%d@example.com", next()),
		FirstName: "Test",
		LastName:  "User",
		Active:    true,
	}
	for _, opt := range opts {
		opt(user)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// TestUserClinic links a user to a clinic.
func TestUserClinic(t *testing.T, db *gorm.DB, userID, clinicID uint, opts ...func(*models.UserClinic)) *models.UserClinic {
	t.Helper()

	link := &models.UserClinic{
		UserID:   userID,
		ClinicID: clinicID,
	}
	for _, opt := range opts {
		opt(link)
	}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("Failed to create test user-clinic link: %v", err)
	}
	return link
}

// WithLegacyRole sets the pre-migration role name on a user-clinic link.
func WithLegacyRole(role string) func(*models.UserClinic) {
	return func(uc *models.UserClinic) {
		uc.LegacyRole = role
	}
}

// TestPlan creates an active subscription plan fixture.
func TestPlan(t *testing.T, db *gorm.DB, opts ...func(*models.SubscriptionPlan)) *models.SubscriptionPlan {
	t.Helper()

	n := next()
	plan := &models.SubscriptionPlan{
		Name:            fmt.Sprintf("plan-%d", n),
		StripeProductID: fmt.Sprintf("prod_test_%d", n),
		StripePriceID:   fmt.Sprintf("price_test_%d", n),
		Price:           4900,
		Currency:        "usd",
		Interval:        "month",
		IntervalCount:   1,
		MaxClinics:      3,
		MaxUsers:        10,
		MaxPatients:     500,
		Features:        `["patients","appointments"]`,
		IsActive:        true,
	}
	for _, opt := range opts {
		opt(plan)
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("Failed to create test plan: %v", err)
	}
	return plan
}

// WithPlanDefault marks the plan as the default.
func WithPlanDefault() func(*models.SubscriptionPlan) {
	return func(p *models.SubscriptionPlan) {
		p.IsDefault = true
	}
}

// WithPlanInactive archives the plan.
func WithPlanInactive() func(*models.SubscriptionPlan) {
	return func(p *models.SubscriptionPlan) {
		p.IsActive = false
	}
}

// TestSubscription creates a subscription fixture for the tenant and plan.
func TestSubscription(t *testing.T, db *gorm.DB, tenantID, planID uint, opts ...func(*models.TenantSubscription)) *models.TenantSubscription {
	t.Helper()

	now := time.Now().UTC()
	sub := &models.TenantSubscription{
		TenantID:             tenantID,
		PlanID:               planID,
		StripeSubscriptionID: fmt.Sprintf("sub_test_%d", next()),
		StripeCustomerID:     fmt.Sprintf("cus_test_%d", next()),
		Status:               "active",
		CurrentPeriodStart:   now,
		CurrentPeriodEnd:     now.AddDate(0, 1, 0),
		Price:                4900,
		Currency:             "usd",
	}
	for _, opt := range opts {
		opt(sub)
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}
	return sub
}

// WithStatus sets the subscription status.
func WithStatus(status string) func(*models.TenantSubscription) {
	return func(s *models.TenantSubscription) {
		s.Status = status
	}
}

// WithTrialEnd sets the trial window end.
func WithTrialEnd(end time.Time) func(*models.TenantSubscription) {
	return func(s *models.TenantSubscription) {
		s.TrialEnd = &end
	}
}

// WithGatewaySubID sets the gateway subscription id.
func WithGatewaySubID(id string) func(*models.TenantSubscription) {
	return func(s *models.TenantSubscription) {
		s.StripeSubscriptionID = id
	}
}

// TestTransaction creates a transaction fixture.
func TestTransaction(t *testing.T, db *gorm.DB, opts ...func(*models.StripeTransaction)) *models.StripeTransaction {
	t.Helper()

	piID := fmt.Sprintf("pi_test_%d", next())
	txn := &models.StripeTransaction{
		StripePaymentIntentID: &piID,
		StripeCustomerID:      fmt.Sprintf("cus_test_%d", next()),
		Amount:                4900,
		Currency:              "usd",
		Status:                "succeeded",
		Type:                  models.TransactionTypeOneTime,
	}
	for _, opt := range opts {
		opt(txn)
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("Failed to create test transaction: %v", err)
	}
	return txn
}

// WithPaymentIntentID sets the payment intent id.
func WithPaymentIntentID(id string) func(*models.StripeTransaction) {
	return func(txn *models.StripeTransaction) {
		txn.StripePaymentIntentID = &id
	}
}

// WithTransactionTenant attributes the transaction to a tenant.
func WithTransactionTenant(tenantID uint) func(*models.StripeTransaction) {
	return func(txn *models.StripeTransaction) {
		txn.TenantID = &tenantID
	}
}
