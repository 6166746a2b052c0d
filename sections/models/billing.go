package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/MohamedNourTN/clinicback/common"
)

// SubscriptionPlan mirrors a gateway product+price pair with local
// entitlement limits. Plans are archived, never deleted.
type SubscriptionPlan struct {
	gorm.Model
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"size:500" json:"description"`

	StripeProductID string `gorm:"size:255;index" json:"stripeProductId"`
	StripePriceID   string `gorm:"uniqueIndex;size:255;not null" json:"stripePriceId"`

	Price         int64  `gorm:"not null" json:"price"` // minor currency units
	Currency      string `gorm:"size:3;not null;default:'usd'" json:"currency"`
	Interval      string `gorm:"size:20;not null" json:"interval"` // month, year
	IntervalCount int    `gorm:"not null;default:1" json:"intervalCount"`

	TrialPeriodDays int `gorm:"default:0" json:"trialPeriodDays"`

	MaxClinics  int `gorm:"default:0" json:"maxClinics"`
	MaxUsers    int `gorm:"default:0" json:"maxUsers"`
	MaxPatients int `gorm:"default:0" json:"maxPatients"`

	Features string `gorm:"type:text" json:"features"` // JSON array of capability tokens

	IsActive  bool `json:"isActive"`
	IsDefault bool `gorm:"default:false" json:"isDefault"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

// TenantSubscription is the persisted subscription record for one tenant,
// kept consistent with the gateway by the reconciliation engine. Canceled
// records are retained with terminal status. A partial unique index on
// tenant_id (created in db.Migrate) backs the "at most one active-like
// subscription per tenant" invariant.
type TenantSubscription struct {
	gorm.Model
	TenantID uint `gorm:"not null;index" json:"tenantId"`
	PlanID   uint `gorm:"not null;index" json:"planId"`

	StripeSubscriptionID string `gorm:"uniqueIndex;size:255;not null" json:"stripeSubscriptionId"`
	StripeCustomerID     string `gorm:"size:255;index;not null" json:"stripeCustomerId"`

	Status string `gorm:"size:50;not null" json:"status"`

	CurrentPeriodStart time.Time  `gorm:"not null" json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time  `gorm:"not null" json:"currentPeriodEnd"`
	TrialStart         *time.Time `json:"trialStart,omitempty"`
	TrialEnd           *time.Time `json:"trialEnd,omitempty"`
	CancelAtPeriodEnd  bool       `gorm:"default:false" json:"cancelAtPeriodEnd"`
	CanceledAt         *time.Time `json:"canceledAt,omitempty"`
	EndedAt            *time.Time `json:"endedAt,omitempty"`

	// Commercial terms snapshot taken at creation time.
	Price    int64  `gorm:"not null" json:"price"`
	Currency string `gorm:"size:3;not null;default:'usd'" json:"currency"`

	Tenant Tenant           `gorm:"foreignKey:TenantID" json:"-"`
	Plan   SubscriptionPlan `gorm:"foreignKey:PlanID" json:"-"`
}

func (TenantSubscription) TableName() string {
	return "tenant_subscriptions"
}

// Transaction type classifications.
const (
	TransactionTypeSubscription = "subscription"
	TransactionTypeOneTime      = "one_time"
	TransactionTypeRefund       = "refund"
	TransactionTypeDispute      = "dispute"
	TransactionTypePayout       = "payout"
	TransactionTypeInvoice      = "invoice"
)

// StripeTransaction is one payment/event ledger row. The payment-intent id
// is nullable but unique when present, which is what the sync and
// payment-intent webhook upserts key on.
type StripeTransaction struct {
	gorm.Model
	TenantID *uint `gorm:"index" json:"tenantId,omitempty"`

	StripePaymentIntentID *string `gorm:"uniqueIndex;size:255" json:"stripePaymentIntentId,omitempty"`
	StripeInvoiceID       string  `gorm:"size:255;index" json:"stripeInvoiceId,omitempty"`
	StripeSubscriptionID  string  `gorm:"size:255;index" json:"stripeSubscriptionId,omitempty"`
	StripeCustomerID      string  `gorm:"size:255;index;not null" json:"stripeCustomerId"`

	Amount         int64  `gorm:"not null" json:"amount"` // minor currency units
	Currency       string `gorm:"size:3;not null;default:'usd'" json:"currency"`
	RefundedAmount int64  `gorm:"default:0" json:"refundedAmount"`
	FeeAmount      int64  `gorm:"default:0" json:"feeAmount"`
	NetAmount      int64  `gorm:"default:0" json:"netAmount"`

	Status string `gorm:"size:50;not null" json:"status"`
	Type   string `gorm:"size:20;not null" json:"type"`

	FailureCode    string `gorm:"size:100" json:"failureCode,omitempty"`
	FailureMessage string `gorm:"size:500" json:"failureMessage,omitempty"`
	CardBrand      string `gorm:"size:20" json:"cardBrand,omitempty"`
	CardLast4      string `gorm:"size:4" json:"cardLast4,omitempty"`

	PaidAt *time.Time `json:"paidAt,omitempty"`
}

func (StripeTransaction) TableName() string {
	return "stripe_transactions"
}

// Validate enforces the ledger invariants: monetary fields are non-negative
// and the net amount never exceeds the gross amount.
func (t *StripeTransaction) Validate() error {
	if t.Amount < 0 {
		return common.ValidationError("transaction amount must be non-negative")
	}
	if t.RefundedAmount < 0 {
		return common.ValidationError("refunded amount must be non-negative")
	}
	if t.FeeAmount < 0 {
		return common.ValidationError("fee amount must be non-negative")
	}
	if t.NetAmount != 0 && t.NetAmount > t.Amount {
		return common.ValidationError("net amount cannot exceed transaction amount")
	}
	if t.StripeCustomerID == "" {
		return common.ValidationError("gateway customer id is required")
	}
	return nil
}

// WebhookEvent records every verified gateway event with a unique
// (provider, event id) key so redelivered events are detected and skipped.
type WebhookEvent struct {
	gorm.Model
	Provider        string     `gorm:"size:20;not null;index:ux_webhook_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"size:255;not null;index:ux_webhook_provider_event,unique,priority:2" json:"providerEventId"`
	EventType       string     `gorm:"size:100;not null;index" json:"eventType"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processingError,omitempty"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
